// Package id provides prefixed ID generation.
package id

import (
	nanoid "github.com/matoous/go-nanoid/v2"
)

const DefaultLength = 21

const (
	PrefixMessage = "msg"
	PrefixQAPair  = "qa"
	PrefixToolUse = "tu"
	PrefixSession = "sess"
)

func New(prefix string) string {
	id, err := nanoid.New(DefaultLength)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return prefix + "_" + id
}

func NewMessage() string { return New(PrefixMessage) }
func NewQAPair() string  { return New(PrefixQAPair) }
func NewToolUse() string { return New(PrefixToolUse) }
func NewSession() string { return New(PrefixSession) }
