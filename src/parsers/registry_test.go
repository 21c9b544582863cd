package parsers_test

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/taxfolio/declaration/src/parsers"
	mock_parsers "github.com/username/taxfolio/declaration/src/parsers/mocks"
)

func TestDefaultRegistry(t *testing.T) {
	r := parsers.DefaultRegistry()
	assert.Equal(t, []string{"csv", "degiro", "ibkr"}, r.Names())

	p, err := r.Get(" DeGiro ")
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = r.Get("revolut")
	assert.True(t, errors.Is(err, parsers.ErrUnsupportedParser))

	assert.Equal(t, []string{"revolut", "etoro"}, r.Unsupported([]string{"ibkr", "revolut", "etoro", "CSV"}))
}

func TestRegistry_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := mock_parsers.NewMockParser(ctrl)

	r := parsers.NewRegistry()
	require.NoError(t, r.Register("custom", func() parsers.Parser { return mock }))
	assert.Error(t, r.Register("CUSTOM", func() parsers.Parser { return mock }))
	assert.Error(t, r.Register("", func() parsers.Parser { return mock }))
	assert.Error(t, r.Register("nil", nil))

	got, err := r.Get("custom")
	require.NoError(t, err)
	assert.Same(t, mock, got)
}
