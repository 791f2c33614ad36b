package store

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/clinsup/apperr"
	"github.com/zeptools/clinsup/db/kvdb"
	"github.com/zeptools/clinsup/db/kvdb/impls/memory"
	"github.com/zeptools/clinsup/sec"
)

func TestScope_KeysArePrefixedByUser(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := New(kv, nil, nil)

	jane, err := s.Scoped("Jane")
	require.NoError(t, err)
	bob, err := s.Scoped("Bob")
	require.NoError(t, err)

	require.NoError(t, jane.Set(ctx, KeyCurrentFormID, "form_1"))
	require.NoError(t, bob.Set(ctx, KeyCurrentFormID, "form_2"))

	raw, found, err := kv.Get(ctx, "Jane_currentFormId")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "form_1", raw)

	v, found, err := bob.Get(ctx, KeyCurrentFormID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "form_2", v)

	require.NoError(t, jane.Remove(ctx, KeyCurrentFormID))
	_, found, err = jane.Get(ctx, KeyCurrentFormID)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, _ = bob.Get(ctx, KeyCurrentFormID)
	assert.True(t, found)
}

func TestScoped_EmptyUser(t *testing.T) {
	s := New(memory.New(), nil, nil)
	_, err := s.Scoped("  ")
	assert.ErrorIs(t, err, ErrEmptyUser)
}

func TestRegisterUser_NoDuplicatesInOrder(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), nil, nil)
	for _, u := range []string{"Jane", "Bob", "Jane", " Bob "} {
		require.NoError(t, s.RegisterUser(ctx, u))
	}
	users, err := s.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane", "Bob"}, users)
}

func TestScope_Keys(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), nil, nil)
	jane, _ := s.Scoped("Jane")
	bob, _ := s.Scoped("Bob")
	require.NoError(t, jane.Set(ctx, FormDataKey("form_2"), "{}"))
	require.NoError(t, jane.Set(ctx, FormDataKey("form_1"), "{}"))
	require.NoError(t, jane.Set(ctx, KeyFormList, "[]"))
	require.NoError(t, bob.Set(ctx, FormDataKey("form_3"), "{}"))

	keys, err := jane.Keys(ctx, KeyFormDataPfx)
	require.NoError(t, err)
	assert.Equal(t, []string{"formData_form_1", "formData_form_2"}, keys)
}

func TestStore_EncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	c, err := sec.NewValueCipher(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	s := New(kv, c, nil)
	jane, _ := s.Scoped("Jane")

	require.NoError(t, jane.Set(ctx, KeyCurrentFormID, "form_42"))
	raw, _, _ := kv.Get(ctx, "Jane_currentFormId")
	assert.NotContains(t, raw, "form_42")

	v, found, err := jane.Get(ctx, KeyCurrentFormID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "form_42", v)
}

type failingKV struct {
	kvdb.Client
}

func (failingKV) Set(context.Context, string, string, time.Duration) error {
	return errors.New("quota exceeded")
}

func TestStore_WriteFailureIsStorageFailure(t *testing.T) {
	s := New(failingKV{Client: memory.New()}, nil, nil)
	jane, _ := s.Scoped("Jane")
	err := jane.Set(context.Background(), KeyFormList, "[]")
	var sf *apperr.StorageFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "set", sf.Op)
	assert.Equal(t, "Jane_formList", sf.Key)
}
