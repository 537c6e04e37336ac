package contract

import (
	"testing"

	"bklogistics/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddProductAssignsMonotonicIDs(t *testing.T) {
	l := bootstrap(t)

	first := l.addProduct("Cement, 25kg bag")
	second := l.addProduct("Rebar, 12mm")
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)

	product, err := l.cc.GetProduct(l.as(malloryID), second)
	require.NoError(t, err)
	assert.Equal(t, "Rebar, 12mm", product.Descriptor)
	assert.Equal(t, "{}", product.Attributes)
	assert.Equal(t, uint64(1), product.Revision)
	assert.Equal(t, adminID, product.CreatedBy)
}

func TestAddProductRequiresAdmin(t *testing.T) {
	l := bootstrap(t)

	_, err := l.cc.AddProduct(l.as(aliceID), "Sand")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The failed call did not burn an id.
	assert.Equal(t, uint64(1), l.addProduct("Sand"))
}

func TestAddProductRejectsEmptyDescriptor(t *testing.T) {
	l := bootstrap(t)

	_, err := l.cc.AddProduct(l.as(adminID), "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProductAttributesAreSchemaChecked(t *testing.T) {
	tests := []struct {
		name    string
		attrs   string
		wantErr bool
	}{
		{"empty document", "", false},
		{"full document", `{"sku":"CEM-25","unit":"kg","weightGrams":25000,"hsCode":"252329","origin":"VN"}`, false},
		{"unknown unit", `{"unit":"bushel"}`, true},
		{"negative weight", `{"weightGrams":-1}`, true},
		{"bad origin", `{"origin":"Vietnam"}`, true},
		{"unexpected field", `{"colour":"grey"}`, true},
		{"not json", `{"sku":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := bootstrap(t)
			_, err := l.cc.AddProductWithAttributes(l.as(adminID), "Cement", tt.attrs)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestReviseProductKeepsHistory(t *testing.T) {
	l := bootstrap(t)
	id := l.addProduct("Cement")

	require.NoError(t, l.cc.ReviseProduct(l.as(adminID), id, "Cement, grade 42.5", `{"unit":"kg"}`))
	assert.Equal(t, []string{model.EventProductRevised}, l.drainEvents())

	product, err := l.cc.GetProduct(l.as(adminID), id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), product.Revision)
	assert.Equal(t, `{"unit":"kg"}`, product.Attributes)

	history, err := l.cc.GetProductHistory(l.as(adminID), id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Cement", history[0].Descriptor)
	assert.Equal(t, "Cement, grade 42.5", history[1].Descriptor)
	assert.True(t, history[1].RevisedAt.After(history[0].RevisedAt))
}

func TestReviseUnknownProduct(t *testing.T) {
	l := bootstrap(t)

	err := l.cc.ReviseProduct(l.as(adminID), 42, "Ghost", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProductExists(t *testing.T) {
	l := bootstrap(t)
	id := l.addProduct("Gravel")

	for _, tc := range []struct {
		id   uint64
		want bool
	}{{0, false}, {id, true}, {id + 1, false}} {
		got, err := l.cc.ProductExists(l.as(malloryID), tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "product %d", tc.id)
	}

	_, err := l.cc.GetProduct(l.as(malloryID), id+1)
	assert.ErrorIs(t, err, ErrNotFound)
}
