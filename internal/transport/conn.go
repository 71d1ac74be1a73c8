package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voiceapi/internal/stt"
	"github.com/lexiqai/voiceapi/internal/tts"
)

const (
	writeTimeout = 10 * time.Second
	closeTimeout = time.Second
)

// Conn adapts a websocket connection to the session sources and sinks.
// Reads come from a single goroutine; writes are serialized.
type Conn struct {
	ws     *websocket.Conn
	logger zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, logger zerolog.Logger) *Conn {
	return &Conn{ws: ws, logger: logger}
}

// read returns the next data message. Cancelling ctx unblocks a pending read
// by moving the read deadline; the connection is unusable afterwards.
func (c *Conn) read(ctx context.Context) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	messageType, data, err := c.ws.ReadMessage()
	if err != nil && ctx.Err() != nil {
		return 0, nil, ctx.Err()
	}
	return messageType, data, err
}

// isNormalClose reports a close frame sent by a client that is done talking
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

// ReceiveAudio returns the next binary message. A normal close by the client
// ends the input like an empty message does.
func (c *Conn) ReceiveAudio(ctx context.Context) ([]byte, error) {
	for {
		messageType, data, err := c.read(ctx)
		if err != nil {
			if isNormalClose(err) {
				return nil, nil
			}
			return nil, err
		}
		if messageType != websocket.BinaryMessage {
			c.logger.Debug().Int("type", messageType).Msg("asr: ignoring non-binary message")
			continue
		}
		if data == nil {
			data = []byte{}
		}
		return data, nil
	}
}

// ReceiveText returns the next text message
func (c *Conn) ReceiveText(ctx context.Context) (string, error) {
	for {
		messageType, data, err := c.read(ctx)
		if err != nil {
			if isNormalClose(err) {
				return "", nil
			}
			return "", err
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug().Int("type", messageType).Msg("tts: ignoring non-text message")
			continue
		}
		return string(data), nil
	}
}

func (c *Conn) write(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return fn()
}

// SendResult writes a recognition result as JSON
func (c *Conn) SendResult(ctx context.Context, result *stt.Result) error {
	return c.write(ctx, func() error { return c.ws.WriteJSON(result) })
}

// SendAudio writes one binary audio frame
func (c *Conn) SendAudio(ctx context.Context, frame []byte) error {
	return c.write(ctx, func() error { return c.ws.WriteMessage(websocket.BinaryMessage, frame) })
}

// SendMarker writes an end-of-utterance marker as JSON
func (c *Conn) SendMarker(ctx context.Context, marker *tts.Result) error {
	return c.write(ctx, func() error { return c.ws.WriteJSON(marker) })
}

// CloseWith sends a close frame with code and reason, then closes the
// connection. Only the first close has an effect.
func (c *Conn) CloseWith(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(code, reason)
		werr := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
		c.writeMu.Unlock()
		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			c.logger.Debug().Err(werr).Msg("failed to send close frame")
		}
		err = c.ws.Close()
	})
	return err
}

// Close closes the connection normally
func (c *Conn) Close() error {
	return c.CloseWith(websocket.CloseNormalClosure, "")
}
