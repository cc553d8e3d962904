package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codoleet/internal/cli/command"
	httpclient "codoleet/internal/cli/http"
	"codoleet/internal/cli/state"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/gorilla/websocket"
)

const prompt = "codoleet> "

// Session holds REPL state.
type Session struct {
	client     *httpclient.Client
	commands   map[string]command.Command
	tokenState *state.TokenState
	statePath  string
	prettyJSON bool
	rl         *readline.Instance
}

func New(client *httpclient.Client, commands map[string]command.Command, tokenState *state.TokenState, statePath string, prettyJSON bool) *Session {
	return &Session{
		client:     client,
		commands:   commands,
		tokenState: tokenState,
		statePath:  statePath,
		prettyJSON: prettyJSON,
	}
}

func (s *Session) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
	})
	if err != nil {
		return fmt.Errorf("init readline failed: %w", err)
	}
	defer func() { _ = rl.Close() }()
	s.rl = rl

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input failed: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			s.printLine("bye")
			return nil
		}
		if s.handleSystemCommand(line) {
			continue
		}

		if err := s.handleCommand(ctx, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) handleSystemCommand(line string) bool {
	switch line {
	case "help":
		s.printHelp()
		return true
	case "watch":
		if err := s.watch(); err != nil {
			s.printLine("watch failed: %v", err)
		}
		return true
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return true
	}
	if strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
		return true
	}
	return false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		s.printLine("usage: set base|token|timeout")
		return
	}
	switch parts[0] {
	case "base":
		if len(parts) < 2 {
			s.printLine("usage: set base http://127.0.0.1:8080")
			return
		}
		s.client.SetBaseURL(parts[1])
		s.printLine("base set to %s", parts[1])
	case "timeout":
		if len(parts) < 2 {
			s.printLine("usage: set timeout 10s")
			return
		}
		dur, err := time.ParseDuration(parts[1])
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	case "token":
		if len(parts) < 2 {
			s.printLine("usage: set token <access_token>")
			return
		}
		s.tokenState.AccessToken = parts[1]
		if err := state.Save(s.statePath, *s.tokenState); err != nil {
			s.printLine("save token failed: %v", err)
			return
		}
		s.printLine("token updated")
	default:
		s.printLine("unknown set command")
	}
}

func (s *Session) handleShow(args string) {
	switch args {
	case "token":
		if s.tokenState.AccessToken == "" {
			s.printLine("token: <empty>")
			return
		}
		token := s.tokenState.AccessToken
		if len(token) > 12 {
			token = token[:6] + "..." + token[len(token)-4:]
		}
		s.printLine("token: %s", token)
	case "config":
		s.printLine("base: %s", s.client.BaseURL())
		s.printLine("tokenStatePath: %s", s.statePath)
	default:
		s.printLine("usage: show token|config")
	}
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <service> <action> key=value ...")
	}
	service := tokens[0]
	action := tokens[1]
	key := fmt.Sprintf("%s %s", service, action)
	cmd, ok := s.commands[key]
	if !ok {
		return fmt.Errorf("unknown command: %s %s", service, action)
	}
	params := command.Params{}
	for _, token := range tokens[2:] {
		parts := strings.SplitN(token, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid param: %s", token)
		}
		params.Set(parts[0], parts[1])
	}

	s.applyParamShortcuts(&cmd, params)
	if err := s.promptMissing(&cmd, params); err != nil {
		return err
	}
	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, nil, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	return nil
}

func (s *Session) applyParamShortcuts(cmd *command.Command, params command.Params) {
	if cmd.Service == "submit" && cmd.Action == "create" {
		if params.Get("source_file") != "" && params.Get("code") == "" {
			params.Set("code", "_file_")
		}
	}
}

func (s *Session) promptMissing(cmd *command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if !field.Required {
			continue
		}
		if params.Get(field.Name) != "" {
			continue
		}
		value, err := s.promptValue(field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) promptValue(fieldPrompt string) (string, error) {
	s.rl.SetPrompt(fieldPrompt + ": ")
	defer s.rl.SetPrompt(prompt)
	line, err := s.rl.Readline()
	if err != nil {
		return "", fmt.Errorf("read input failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// watch streams submission-updated events over the websocket endpoint until
// the user presses Enter.
func (s *Session) watch() error {
	wsURL, err := websocketURL(s.client.BaseURL())
	if err != nil {
		return err
	}
	header := http.Header{}
	if s.tokenState.AccessToken != "" {
		header.Set("Authorization", "Bearer "+s.tokenState.AccessToken)
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return fmt.Errorf("dial %s failed: %w", wsURL, err)
	}
	defer func() { _ = conn.Close() }()

	s.printLine("watching %s, press Enter to stop", wsURL)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.printLine("%s", s.render(payload))
		}
	}()

	s.rl.SetPrompt("")
	_, readErr := s.rl.Readline()
	s.rl.SetPrompt(prompt)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	<-done
	if readErr != nil && !errors.Is(readErr, readline.ErrInterrupt) && !errors.Is(readErr, io.EOF) {
		return readErr
	}
	return nil
}

func websocketURL(base string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/api/v1/ws"
	return parsed.String(), nil
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration)
	if len(resp.Body) == 0 {
		return
	}
	s.printLine("%s", s.render(resp.Body))
}

func (s *Session) render(body []byte) string {
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			return string(formatted)
		}
	}
	return string(body)
}

func (s *Session) printHelp() {
	s.printLine("usage: <service> <action> key=value ...")
	s.printLine("system: help | exit | watch | set base|timeout|token | show token|config")
	s.printLine("examples:")
	s.printLine("  submit create problem_id=two-sum language=javascript source_file=./solution.js")
	s.printLine("  submit status id=0f8fad5b-d9cb-469f-a165-70867728950e")
	s.printLine("  submit history user_id=user-1")
	s.printLine("  watch")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.rl.Stdout(), format+"\n", args...)
}
