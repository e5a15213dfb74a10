package awsclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"missing region", Options{}, ErrRegionRequired},
		{"key without secret", Options{Region: "us-east-1", AccessKeyID: "AKID"}, ErrIncompleteStaticKeys},
		{"secret without key", Options{Region: "us-east-1", SecretAccessKey: "secret"}, ErrIncompleteStaticKeys},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), tt.opts)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_StaticKeysAndEndpoint(t *testing.T) {
	cfg, err := Load(context.Background(), Options{
		Region:          " eu-west-1 ",
		Endpoint:        "http://localhost:4566/",
		AccessKeyID:     "AKID",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Region)
	require.NotNil(t, cfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *cfg.BaseEndpoint)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
}

func TestLoad_NoEndpointKeepsDefault(t *testing.T) {
	cfg, err := Load(context.Background(), Options{
		Region:          "us-east-1",
		AccessKeyID:     "AKID",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	assert.Nil(t, cfg.BaseEndpoint)
}
