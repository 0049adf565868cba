package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// message is either a response carrying an id or an event, events are ignored.
type message struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *responseError  `json:"error"`
}

// Session is one devtools protocol connection. Calls are sent one at a time.
type Session struct {
	conn   *websocket.Conn
	mutex  sync.Mutex
	nextID int64
}

func newSession(conn *websocket.Conn) *Session {
	return &Session{conn: conn}
}

// Call sends a protocol command and decodes its result into result, which
// may be nil.
func (s *Session) Call(ctx context.Context, method string, params any, result any) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nextID++
	id := s.nextID
	if err := wsjson.Write(ctx, s.conn, request{ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	for {
		var msg message
		if err := wsjson.Read(ctx, s.conn, &msg); err != nil {
			return fmt.Errorf("read %s: %w", method, err)
		}
		if msg.ID != id {
			continue
		}
		if msg.Error != nil {
			return fmt.Errorf("%s: %s (%d)", method, msg.Error.Message, msg.Error.Code)
		}
		if result == nil {
			return nil
		}
		return json.Unmarshal(msg.Result, result)
	}
}

type evaluateParams struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue"`
	AwaitPromise  bool   `json:"awaitPromise"`
}

type evaluateResult struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text      string `json:"text"`
		Exception *struct {
			Description string `json:"description"`
		} `json:"exception"`
	} `json:"exceptionDetails"`
}

// Evaluate runs a script in the page and decodes the value it returns into
// out, which may be nil.
func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	ctx, span := tracer.Start(ctx, "Evaluate")
	defer span.End()
	span.SetAttributes(attribute.Int("expression_len", len(expression)))

	var res evaluateResult
	err := s.Call(ctx, "Runtime.evaluate", evaluateParams{
		Expression:    expression,
		ReturnByValue: true,
		AwaitPromise:  true,
	}, &res)
	if err != nil {
		return err
	}
	if res.ExceptionDetails != nil {
		text := res.ExceptionDetails.Text
		if res.ExceptionDetails.Exception != nil && res.ExceptionDetails.Exception.Description != "" {
			text = res.ExceptionDetails.Exception.Description
		}
		return errors.New("script failed: " + text)
	}
	if out == nil || len(res.Result.Value) == 0 {
		return nil
	}
	return json.Unmarshal(res.Result.Value, out)
}

func (s *Session) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
