package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "submit",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/submissions",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "problem_id", Aliases: []string{"problem"}, Prompt: "problem_id", Type: FieldString, Required: true},
				{Name: "language", Aliases: []string{"lang"}, Prompt: "language (cpp|javascript)", Type: FieldString, Required: true},
				{Name: "code", Prompt: "code", Type: FieldString, Required: true},
				{Name: "source_file", Aliases: []string{"file"}, Prompt: "source_file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "submit",
			Action:       "status",
			Method:       "GET",
			PathTemplate: "/api/v1/submissions/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "submit",
			Action:       "history",
			Method:       "GET",
			PathTemplate: "/api/v1/submissions/user/:user_id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "user_id", Aliases: []string{"user"}, Prompt: "user_id", Type: FieldString, Required: true},
			},
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		key := fmt.Sprintf("%s %s", cmd.Service, cmd.Action)
		result[key] = cmd
	}
	return result
}

// BuildRequest creates an HTTP request spec based on the command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method: cmd.Method,
		Path:   path,
		Body:   body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	for _, key := range []string{"id", "user_id"} {
		placeholder := ":" + key
		if strings.Contains(path, placeholder) {
			value := params.Get(key)
			if value == "" {
				return "", fmt.Errorf("missing path parameter: %s", key)
			}
			path = strings.ReplaceAll(path, placeholder, value)
		}
	}
	return path, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	if cmd.Service == "submit" && cmd.Action == "create" {
		return buildSubmitCreatePayload(params)
	}
	return nil, nil
}

func buildSubmitCreatePayload(params Params) (interface{}, error) {
	code := params.Get("code")
	var err error
	if (code == "" || code == "_file_") && params.Get("source_file") != "" {
		code, err = ReadFile(params.Get("source_file"))
		if err != nil {
			return nil, err
		}
	}
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}

	return map[string]interface{}{
		"problemId": params.Get("problem_id"),
		"language":  params.Get("language"),
		"code":      code,
	}, nil
}
