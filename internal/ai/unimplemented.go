package ai

import (
	"context"
	"fmt"
)

// unimplemented is a declared provider without an adapter.
type unimplemented struct {
	name string
}

func (p unimplemented) Name() string         { return p.name }
func (p unimplemented) DefaultModel() string { return "" }

func (p unimplemented) Generate(context.Context, []Message, Options) (*Result, error) {
	return nil, newError(KindNotImplemented, p.name, 0,
		fmt.Sprintf("provider %q is not implemented; set AI_PROVIDER to one of %v", p.name, ImplementedProviders()), nil)
}
