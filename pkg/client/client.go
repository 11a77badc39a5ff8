// Package client resolves a service, model, and system prompt from the
// configuration plus caller overrides and drives the resulting provider.
package client

import (
	"context"
	"fmt"

	"github.com/askmecli/askme/pkg/config"
	"github.com/askmecli/askme/pkg/provider"
)

// ServiceNotFoundError reports that the effective service name has no entry
// in the configuration.
type ServiceNotFoundError struct {
	Name string
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("service %q not found in configuration", e.Name)
}

// Client owns one fully resolved driver for the duration of one invocation.
type Client struct {
	serviceName string
	driver      provider.Driver
}

// New resolves the effective service, model, and system prompt and builds
// the matching driver. Empty override strings mean "not given".
//
// Service: override, else the configured default. Model: override, else the
// service's model; if neither is set the driver constructor rejects it.
// System prompt: the override is looked up as a key in system_prompts and
// used literally when it is not one; without an override the same
// key-or-literal rule is applied to the service's system_prompt reference,
// falling back to the configured default prompt.
func New(serviceName string, cfg *config.Config, modelOverride, promptOverride string) (*Client, error) {
	name := serviceName
	if name == "" {
		name = cfg.DefaultService
	}

	svc, ok := cfg.Services[name]
	if !ok {
		return nil, &ServiceNotFoundError{Name: name}
	}

	model := modelOverride
	if model == "" {
		model = svc.Model
	}

	ref := promptOverride
	if ref == "" {
		ref = svc.SystemPrompt
		if ref == "" {
			ref = cfg.DefaultPrompt
		}
	}
	systemPrompt := resolveRef(cfg.SystemPrompts, ref)

	driver, err := provider.New(svc.Class, svc, model, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", name, err)
	}

	return &Client{serviceName: name, driver: driver}, nil
}

// resolveRef treats candidate as a key into prompts and falls back to the
// candidate itself as literal text when it is not one.
func resolveRef(prompts map[string]string, candidate string) string {
	if text, ok := prompts[candidate]; ok {
		return text
	}
	return candidate
}

// Complete delegates to the resolved driver.
func (c *Client) Complete(ctx context.Context, prompt string) (*provider.Result, error) {
	return c.driver.Complete(ctx, prompt)
}

// ListModels delegates to the resolved driver.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	return c.driver.ListModels(ctx)
}

// ServiceName returns the effective service name.
func (c *Client) ServiceName() string { return c.serviceName }

// Model returns the resolved model.
func (c *Client) Model() string { return c.driver.Model() }

// SystemPrompt returns the resolved system prompt text.
func (c *Client) SystemPrompt() string { return c.driver.SystemPrompt() }
