// Package prompts loads the assistant's prompt pack.
package prompts

import (
	_ "embed"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed support.yaml
var defaultPack []byte

type Style struct {
	Temperature       float32 `yaml:"temperature"`
	TopP              float32 `yaml:"top_p"`
	MaxTokens         int     `yaml:"max_tokens"`
	ClassifyMaxTokens int     `yaml:"classify_max_tokens"`
}

type Pack struct {
	System                string `yaml:"system"`
	Greeting              string `yaml:"greeting"`
	TopicPrompt           string `yaml:"topic_prompt"`
	CapabilitiesDirective string `yaml:"capabilities_directive"`
	FallbackReply         string `yaml:"fallback_reply"`
	Style                 Style  `yaml:"style"`
}

// Default returns the embedded pack.
func Default() *Pack {
	p, err := Parse(defaultPack)
	if err != nil {
		panic(errors.Wrap(err, "embedded prompt pack"))
	}
	return p
}

// Load reads a pack from path. Fields the file leaves empty keep their embedded values.
// An empty path yields the embedded pack.
func Load(path string) (*Pack, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read prompt pack %s", path)
	}
	override, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "parse prompt pack %s", path)
	}
	return merge(Default(), override), nil
}

func Parse(b []byte) (*Pack, error) {
	var p Pack
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	p.trim()
	return &p, nil
}

func (p *Pack) trim() {
	p.System = strings.TrimSpace(p.System)
	p.Greeting = strings.TrimSpace(p.Greeting)
	p.TopicPrompt = strings.TrimSpace(p.TopicPrompt)
	p.CapabilitiesDirective = strings.TrimSpace(p.CapabilitiesDirective)
	p.FallbackReply = strings.TrimSpace(p.FallbackReply)
}

func merge(base, over *Pack) *Pack {
	out := *base
	if over.System != "" {
		out.System = over.System
	}
	if over.Greeting != "" {
		out.Greeting = over.Greeting
	}
	if over.TopicPrompt != "" {
		out.TopicPrompt = over.TopicPrompt
	}
	if over.CapabilitiesDirective != "" {
		out.CapabilitiesDirective = over.CapabilitiesDirective
	}
	if over.FallbackReply != "" {
		out.FallbackReply = over.FallbackReply
	}
	if over.Style.Temperature > 0 {
		out.Style.Temperature = over.Style.Temperature
	}
	if over.Style.TopP > 0 {
		out.Style.TopP = over.Style.TopP
	}
	if over.Style.MaxTokens > 0 {
		out.Style.MaxTokens = over.Style.MaxTokens
	}
	if over.Style.ClassifyMaxTokens > 0 {
		out.Style.ClassifyMaxTokens = over.Style.ClassifyMaxTokens
	}
	return &out
}
