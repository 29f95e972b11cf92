package biz

import (
	"context"
	"errors"
	"testing"

	orderErrors "order-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestConfirm_DirectPurchase(t *testing.T) {
	env := newTestEnv()
	env.skus.On("GetSku", mock.Anything, int64(7)).Return(&Sku{ID: 7, SkuSn: "SKU7", Name: "mug", Price: 1250}, nil)
	env.addresses.On("ListAddresses", mock.Anything, int64(1)).Return([]*Address{{ID: 3, ConsigneeName: "Lee", DefaultFlag: true}}, nil)

	view, err := env.uc.Confirm(context.Background(), &ConfirmRequest{MemberID: 1, SkuID: 7, Count: 2})
	require.NoError(t, err)

	require.Len(t, view.OrderItems, 1)
	assert.Equal(t, int64(2500), view.OrderItems[0].SkuTotalPrice)
	assert.Equal(t, int32(2), view.OrderItems[0].SkuQuantity)
	require.Len(t, view.Addresses, 1)
	assert.NotEmpty(t, view.OrderToken)

	ok, err := env.tokens.Consume(context.Background(), view.OrderToken)
	require.NoError(t, err)
	assert.True(t, ok, "token should be stored for submission")
}

func TestConfirm_CartKeepsCheckedItems(t *testing.T) {
	env := newTestEnv()
	env.carts.items[1] = []*CartItem{
		{SkuID: 1, Price: 100, Count: 1, Checked: true},
		{SkuID: 2, Price: 200, Count: 3, Checked: false},
		{SkuID: 3, Price: 300, Count: 2, Checked: true},
	}
	env.addresses.On("ListAddresses", mock.Anything, int64(1)).Return([]*Address{}, nil)

	view, err := env.uc.Confirm(context.Background(), &ConfirmRequest{MemberID: 1})
	require.NoError(t, err)

	require.Len(t, view.OrderItems, 2)
	assert.Equal(t, int64(1), view.OrderItems[0].SkuID)
	assert.Equal(t, int64(3), view.OrderItems[1].SkuID)
	assert.Equal(t, int64(600), view.OrderItems[1].SkuTotalPrice)
	env.skus.AssertNotCalled(t, "GetSku", mock.Anything, mock.Anything)
}

func TestConfirm_FailsWhenAnyTaskFails(t *testing.T) {
	env := newTestEnv()
	env.skus.On("GetSku", mock.Anything, int64(7)).Return(&Sku{ID: 7, Price: 100}, nil)
	env.addresses.On("ListAddresses", mock.Anything, int64(1)).Return(nil, orderErrors.Remote(errors.New("ums down")))

	view, err := env.uc.Confirm(context.Background(), &ConfirmRequest{MemberID: 1, SkuID: 7, Count: 1})
	assert.Nil(t, view)
	assert.True(t, errors.Is(err, orderErrors.ErrRemoteUnavailable))
	assert.Empty(t, env.tokens.tokens)
}

func TestConfirm_InvalidItem(t *testing.T) {
	env := newTestEnv()
	env.addresses.On("ListAddresses", mock.Anything, int64(1)).Return([]*Address{}, nil)
	env.skus.On("GetSku", mock.Anything, int64(9)).Return(nil, nil)

	_, err := env.uc.Confirm(context.Background(), &ConfirmRequest{MemberID: 1, SkuID: 7, Count: 0})
	assert.True(t, errors.Is(err, orderErrors.ErrInvalidItem))

	_, err = env.uc.Confirm(context.Background(), &ConfirmRequest{MemberID: 1, SkuID: 9, Count: 1})
	assert.True(t, errors.Is(err, orderErrors.ErrInvalidItem))
}

func TestConfirm_TokenStoreFailure(t *testing.T) {
	env := newTestEnv()
	env.tokens.err = orderErrors.Remote(errors.New("redis down"))
	env.carts.items[1] = []*CartItem{{SkuID: 1, Price: 100, Count: 1, Checked: true}}
	env.addresses.On("ListAddresses", mock.Anything, int64(1)).Return([]*Address{}, nil)

	view, err := env.uc.Confirm(context.Background(), &ConfirmRequest{MemberID: 1})
	assert.Nil(t, view)
	assert.Error(t, err)
}
