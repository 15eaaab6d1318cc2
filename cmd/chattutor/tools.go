package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/tools"
)

var disableTools bool

func registerBuiltinTools() error {
	if disableTools {
		return nil
	}
	err := tools.Register(protocol.Tool{
		Name:        "datetime",
		Description: "Returns the current date and time in RFC3339 format, optionally in an IANA time zone.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"zone": map[string]any{
					"type":        "string",
					"description": "IANA time zone name such as Europe/Berlin. Defaults to local time.",
				},
			},
		},
	}, handleDatetime)
	if errors.Is(err, tools.ErrAlreadyExists) {
		return nil
	}
	return err
}

func handleDatetime(_ context.Context, raw json.RawMessage) (tools.Result, error) {
	var args struct {
		Zone string `json:"zone"`
	}
	if err := tools.DecodeArgs(raw, &args); err != nil {
		return tools.Errorf("%v", err), nil
	}

	now := time.Now()
	if args.Zone != "" {
		loc, err := time.LoadLocation(args.Zone)
		if err != nil {
			return tools.Errorf("%v", err), nil
		}
		now = now.In(loc)
	}
	return tools.Result{Content: now.Format(time.RFC3339)}, nil
}
