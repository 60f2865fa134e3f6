package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrMessageDecode is returned for a line that is not a well-formed chat message.
	// Callers drop the line and keep the connection.
	ErrMessageDecode = errors.New("model: malformed chat message")

	// ErrCredentialDecode is returned when the first line of a connection is not a credentials object.
	ErrCredentialDecode = errors.New("model: malformed credentials")
)

var messageFields = []string{"id", "sender_addr", "sender_username", "payload"}

// Encode serializes msg as a single JSON line terminated by '\n'.
// HTML characters are written as-is.
func Encode(msg Message) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(msg); err != nil {
		// Message only holds strings and a UUID, marshalling cannot fail.
		panic(fmt.Sprintf("model: encode message: %v", err))
	}
	return buf.Bytes()
}

// Decode parses one line (terminator already stripped) into a Message.
func Decode(line []byte) (Message, error) {
	line = TrimLine(line)
	if err := requireObject(line, messageFields...); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMessageDecode, err)
	}
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMessageDecode, err)
	}
	return msg, nil
}

// EncodeCredentials serializes credentials as a single JSON line.
func EncodeCredentials(c Credentials) []byte {
	data, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("model: encode credentials: %v", err))
	}
	return append(data, '\n')
}

// DecodeCredentials shape-checks the first line of a connection.
// Both fields must be present strings, their content is not validated.
func DecodeCredentials(line []byte) (Credentials, error) {
	line = TrimLine(line)
	if err := requireObject(line, "username", "password"); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrCredentialDecode, err)
	}
	var c Credentials
	if err := json.Unmarshal(line, &c); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrCredentialDecode, err)
	}
	return c, nil
}

// TrimLine strips a trailing "\n" or "\r\n".
func TrimLine(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}

func requireObject(data []byte, fields ...string) error {
	if !gjson.ValidBytes(data) {
		return errors.New("invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return errors.New("not a json object")
	}
	for i, v := range gjson.GetManyBytes(data, fields...) {
		if !v.Exists() {
			return fmt.Errorf("missing field %q", fields[i])
		}
		if v.Type != gjson.String {
			return fmt.Errorf("field %q is not a string", fields[i])
		}
	}
	return nil
}
