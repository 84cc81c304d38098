package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/RyanH-sudo/NewToolKit-sub004/internal/errors"
)

func TestValidateEmptyTarget(t *testing.T) {
	v := NewValidator(proberConfig())
	err := v.Validate(context.Background(), "   ")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeTargetInvalid))
}

func TestValidateUnresolvableHostname(t *testing.T) {
	v := NewValidator(proberConfig())
	v.pingAvailable = func() bool { return false }

	// The .invalid TLD is reserved and never resolves.
	err := v.Validate(context.Background(), "host.invalid")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeTargetInvalid))
}

func TestValidateLiveHostViaTCP(t *testing.T) {
	v := NewValidator(proberConfig())
	v.pingAvailable = func() bool { return false }
	v.dial = func(ctx context.Context, address string, timeout time.Duration) error {
		if address == "192.0.2.20:443" {
			return nil
		}
		return errors.New("connect: connection timed out")
	}

	assert.NoError(t, v.Validate(context.Background(), "192.0.2.20"))
}

func TestValidateRefusedStillProvesLiveness(t *testing.T) {
	v := NewValidator(proberConfig())
	v.pingAvailable = func() bool { return false }
	v.dial = func(ctx context.Context, address string, timeout time.Duration) error {
		return errors.New("connect: connection refused")
	}

	assert.NoError(t, v.Validate(context.Background(), "192.0.2.21"))
}

func TestValidateUnreachableHost(t *testing.T) {
	v := NewValidator(proberConfig())
	v.pingAvailable = func() bool { return false }
	v.dial = func(ctx context.Context, address string, timeout time.Duration) error {
		return errors.New("connect: no route to host")
	}

	err := v.Validate(context.Background(), "192.0.2.22")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeHostUnreachable))
}
