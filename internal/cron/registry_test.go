package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndIgnoresNil(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "loan-overdue"}, nil)
	registry.Register(nil)
	registry.Register(&stubJob{name: "loan-fines"})

	require.Equal(t, []string{"loan-overdue", "loan-fines"}, registry.Names())

	jobs := registry.Jobs()
	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0], "caller must not mutate the registry")
}
