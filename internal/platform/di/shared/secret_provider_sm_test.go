package shared

import (
	"context"
	"errors"
	"testing"

	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccessor struct {
	gotName string
	data    string
	err     error
}

func (f *fakeAccessor) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.gotName = req.GetName()
	if f.err != nil {
		return nil, f.err
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(f.data)},
	}, nil
}

func TestSecretProviderSM_Access(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		wantName string
	}{
		{"BareID", "cart-db-url", "projects/petshop/secrets/cart-db-url/versions/latest"},
		{"FullVersion", "projects/other/secrets/db/versions/4", "projects/other/secrets/db/versions/4"},
		{"SecretWithoutVersion", "projects/other/secrets/db", "projects/other/secrets/db/versions/latest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAccessor{data: " postgres://cart@db/petshop\n"}
			got, err := NewSecretProviderSM(f, "petshop").Access(context.Background(), tt.secret)
			require.NoError(t, err)
			assert.Equal(t, "postgres://cart@db/petshop", got)
			assert.Equal(t, tt.wantName, f.gotName)
		})
	}
}

func TestSecretProviderSM_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := (*SecretProviderSM)(nil).Access(ctx, "x")
	assert.ErrorIs(t, err, errSecretProviderNotConfigured)

	_, err = NewSecretProviderSM(&fakeAccessor{}, "petshop").Access(ctx, " ")
	assert.Error(t, err)

	_, err = NewSecretProviderSM(&fakeAccessor{}, "").Access(ctx, "cart-db-url")
	assert.Error(t, err)

	_, err = NewSecretProviderSM(&fakeAccessor{data: ""}, "petshop").Access(ctx, "cart-db-url")
	assert.ErrorContains(t, err, "empty payload")

	denied := errors.New("permission denied")
	_, err = NewSecretProviderSM(&fakeAccessor{err: denied}, "petshop").Access(ctx, "cart-db-url")
	assert.ErrorIs(t, err, denied)
}

func TestRedactPath(t *testing.T) {
	assert.Equal(t, "***/sa.json", redactPath(`C:\keys\sa.json`))
	assert.Equal(t, "***/sa.json", redactPath("/etc/keys/sa.json"))
	assert.Equal(t, "***", redactPath("/etc/keys/"))
	assert.Equal(t, "", redactPath(" "))
}
