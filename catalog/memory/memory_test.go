package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/catalog/catalogtest"
)

func TestConformance(t *testing.T) {
	catalogtest.Run(t, func(t *testing.T) catalog.Catalog {
		return New()
	})
}

func TestClosed(t *testing.T) {
	c := New()
	assert.NoError(t, c.Close())
	_, err := c.Status(context.Background(), "ds")
	assert.ErrorIs(t, err, catalog.ErrClosed)
}
