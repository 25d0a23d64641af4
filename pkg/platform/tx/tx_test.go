package tx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBeginner struct {
	calls int
}

func (b *failingBeginner) BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error) {
	b.calls++
	return nil, errors.New("connection refused")
}

func TestRun(t *testing.T) {
	t.Run("joins the transaction already in context", func(t *testing.T) {
		outer := &sql.Tx{}
		db := &failingBeginner{}
		var got *sql.Tx
		err := Run(WithTx(context.Background(), outer), db, func(_ context.Context, tx *sql.Tx) error {
			got = tx
			return nil
		})
		require.NoError(t, err)
		assert.Same(t, outer, got)
		assert.Zero(t, db.calls)
	})

	t.Run("cancelled context never begins", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		db := &failingBeginner{}
		err := Run(ctx, db, func(context.Context, *sql.Tx) error {
			t.Fatal("fn must not run")
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, db.calls)
	})

	t.Run("begin failure is wrapped", func(t *testing.T) {
		db := &failingBeginner{}
		err := Run(context.Background(), db, func(context.Context, *sql.Tx) error {
			t.Fatal("fn must not run")
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "begin transaction")
		assert.Equal(t, 1, db.calls)
	})
}

func TestFromWithoutTx(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
	assert.Equal(t, context.Background(), WithTx(context.Background(), nil))
}
