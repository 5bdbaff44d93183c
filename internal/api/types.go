package api

import (
	"encoding/json"

	"storefront/internal/model"
)

// envelope is the backend's standard response wrapper:
// {"status": "success", "message": "...", "data": {...}}.
// Not every endpoint wraps; see unwrap.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// errorBody is the best-effort shape of a failed response.
type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e errorBody) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// wireCartItem accepts the three item shapes the backend and older local
// caches produce:
//
//	{"_id", "product": {...populated...}, "price", "quantity"}
//	{"productId", "product": {...}, "price", "quantity"}
//	{"product": "<id>", "quantity"}
type wireCartItem struct {
	ID        string           `json:"_id"`
	ProductID string           `json:"productId"`
	Product   model.ProductRef `json:"product"`
	Price     *model.Money     `json:"price"`
	Quantity  *int             `json:"quantity"`
}

type wireCart struct {
	Items    *[]wireCartItem `json:"items"`
	Subtotal *model.Money    `json:"subtotal"`
	Tax      *model.Money    `json:"tax"`
	Total    *model.Money    `json:"total"`
}

type wireWishlist struct {
	Items *[]model.WishlistEntry `json:"items"`
}

// wireSyncItem is one guest line sent to POST /cart/sync.
type wireSyncItem struct {
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	Price     model.Money `json:"price"`
}

type wireLogin struct {
	User         *model.UserProfile `json:"user"`
	Token        string             `json:"token"`
	RefreshToken string             `json:"refreshToken"`
}

type wirePagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

type wireProductPage struct {
	Products   []model.ProductSummary `json:"products"`
	Page       int                    `json:"page"`
	Pages      int                    `json:"pages"`
	Total      int                    `json:"total"`
	Pagination *wirePagination        `json:"pagination"`
}
