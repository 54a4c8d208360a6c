package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pasarhq/backend-pasar/internal/common"
	"github.com/pasarhq/backend-pasar/internal/coupon"
	"github.com/pasarhq/backend-pasar/internal/inspect"
)

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type itemPayload struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Quantity  int32  `json:"quantity" validate:"required,gt=0"`
}

type updatePayload struct {
	Items               []itemPayload `json:"items" validate:"dive"`
	CouponCodes         []string      `json:"couponCodes"`
	DeliveryDestination string        `json:"deliveryDestination"`
	CustomerStatus      string        `json:"customerStatus" validate:"omitempty,oneof=new existing"`
}

type createPayload struct {
	OwnerID    string `json:"ownerId" validate:"required,uuid4"`
	LocationID string `json:"locationId" validate:"required,uuid4"`
}

type quotePayload struct {
	LocationID string `json:"locationId" validate:"required,uuid4"`
	updatePayload
}

// Create loads or creates the owner's cart for a location.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if !h.decode(w, r, &payload) {
		return
	}
	ownerID, _ := uuid.Parse(payload.OwnerID)
	locationID, _ := uuid.Parse(payload.LocationID)

	rec, err := h.Svc.EnsureCart(r.Context(), ownerID, locationID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"cartId": rec.ID,
			"cart":   rec.Cart,
		},
	})
}

// Get returns the persisted cart with its lines.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.Svc.Get(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"cartId":    rec.ID,
			"cart":      rec.Cart,
			"updatedAt": rec.UpdatedAt,
		},
	})
}

// Quote prices a selection without persisting anything.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var payload quotePayload
	if !h.decode(w, r, &payload) {
		return
	}
	locationID, _ := uuid.Parse(payload.LocationID)
	input, err := payload.updatePayload.toInput()
	if err != nil {
		h.writeError(w, err)
		return
	}
	snapshot, err := h.Svc.Quote(r.Context(), locationID, input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snapshot})
}

// Update reconciles the cart to the requested state.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload updatePayload
	if !h.decode(w, r, &payload) {
		return
	}
	input, err := payload.toInput()
	if err != nil {
		h.writeError(w, err)
		return
	}
	rec, err := h.Svc.Update(r.Context(), cartID, input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"cartId":    rec.ID,
			"cart":      rec.Cart,
			"updatedAt": rec.UpdatedAt,
		},
	})
}

// Checkout converts the cart into an order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Checkout(r.Context(), cartID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"cartId": cartID, "ownerType": inspect.OwnerOrder},
	})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid payload", validationDetails(err))
			return false
		}
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr):
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrCouponsRequireProducts):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	case errors.Is(err, inspect.ErrLocationNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "location not found", nil)
	case errors.Is(err, inspect.ErrStoreNotConfigured):
		common.JSONError(w, http.StatusConflict, "CONFLICT", "location has no store configured", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to process cart", nil)
	}
}

func (p updatePayload) toInput() (UpdateInput, error) {
	input := UpdateInput{
		CouponCodes:         p.CouponCodes,
		DeliveryDestination: strings.TrimSpace(p.DeliveryDestination),
	}
	switch p.CustomerStatus {
	case "new":
		input.Customer = coupon.CustomerNew
	case "existing":
		input.Customer = coupon.CustomerExisting
	}
	for _, it := range p.Items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			return UpdateInput{}, common.NewAppError("BAD_REQUEST", "invalid product id: "+it.ProductID, http.StatusBadRequest, err)
		}
		input.Items = append(input.Items, inspect.Item{ProductID: pid, Quantity: it.Quantity})
	}
	return input, nil
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, map[string]string{
			"field": fe.Field(),
			"rule":  fe.Tag(),
		})
	}
	return details
}
