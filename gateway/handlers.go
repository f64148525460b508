package gateway

import (
	"errors"
	"net/http"

	"github.com/example/bistro/pkg/apperr"
	"github.com/example/bistro/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type configRequest struct {
	CancellationCutoffMinutes *int `json:"cancellation_cutoff_minutes" binding:"required"`
	PaidVisibilityMinutes     *int `json:"paid_visibility_minutes" binding:"required"`
}

type addToCartRequest struct {
	ID    *int     `json:"id" binding:"required"`
	Name  *string  `json:"name" binding:"required"`
	Price *float64 `json:"price" binding:"required"`
}

type updateCartItemRequest struct {
	Quantity      *int    `json:"quantity"`
	Customization *string `json:"customization"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type imageResponse struct {
	ImageURL string `json:"image_url"`
}

// @Summary Get the menu document
// @Tags menu
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} detailResponse
// @Router /menu [get]
func (g *Gateway) getMenu(c *gin.Context) {
	menu, err := g.services.Catalog.Menu(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

// @Summary Replace the menu document
// @Tags menu
// @Accept json
// @Produce json
// @Param menu body map[string]interface{} true "Menu document"
// @Success 200 {object} messageResponse
// @Failure 422 {object} detailResponse
// @Router /update-menu [post]
func (g *Gateway) updateMenu(c *gin.Context) {
	var menu models.Menu
	if err := c.ShouldBindJSON(&menu); err != nil || menu == nil {
		g.invalid(c, "menu must be a JSON object")
		return
	}
	if err := g.services.Catalog.ReplaceMenu(c.Request.Context(), menu); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Menu updated successfully"})
}

// @Summary Get the runtime config
// @Tags config
// @Produce json
// @Success 200 {object} models.Config
// @Router /config [get]
func (g *Gateway) getConfig(c *gin.Context) {
	cfg, err := g.services.Catalog.Config(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// @Summary Replace the runtime config
// @Tags config
// @Accept json
// @Produce json
// @Param config body configRequest true "Config"
// @Success 200 {object} models.Config
// @Failure 422 {object} detailResponse
// @Router /config [post]
func (g *Gateway) setConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.invalid(c, "cancellation_cutoff_minutes and paid_visibility_minutes are required integers")
		return
	}
	cfg, err := g.services.Catalog.SetConfig(c.Request.Context(), models.Config{
		CancellationCutoffMinutes: *req.CancellationCutoffMinutes,
		PaidVisibilityMinutes:     *req.PaidVisibilityMinutes,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// @Summary Get the caller's cart
// @Tags cart
// @Produce json
// @Success 200 {array} models.CartItem
// @Router /cart [get]
func (g *Gateway) getCart(c *gin.Context) {
	items, err := g.services.Carts.Get(c.ClientIP())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// @Summary Add a menu item to the caller's cart
// @Tags cart
// @Accept json
// @Produce json
// @Param item body addToCartRequest true "Menu item"
// @Success 200 {array} models.CartItem
// @Failure 422 {object} detailResponse
// @Router /cart/add [post]
func (g *Gateway) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.invalid(c, "id, name and price are required")
		return
	}
	items, err := g.services.Carts.Add(c.ClientIP(), models.MenuItem{
		ID:    *req.ID,
		Name:  *req.Name,
		Price: *req.Price,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// @Summary Update quantity or customization of a cart line
// @Tags cart
// @Accept json
// @Produce json
// @Param cart_item_id path string true "Cart line id"
// @Param update body updateCartItemRequest true "Fields to change"
// @Success 200 {object} models.CartItem
// @Failure 404 {object} detailResponse
// @Failure 422 {object} detailResponse
// @Router /cart/item/{cart_item_id} [put]
func (g *Gateway) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.invalid(c, "body must be a JSON object")
		return
	}
	item, err := g.services.Carts.Update(c.ClientIP(), c.Param("cart_item_id"), req.Quantity, req.Customization)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// @Summary Remove a cart line
// @Tags cart
// @Produce json
// @Param cart_item_id path string true "Cart line id"
// @Success 200 {object} messageResponse
// @Failure 404 {object} detailResponse
// @Router /cart/item/{cart_item_id} [delete]
func (g *Gateway) removeCartItem(c *gin.Context) {
	if err := g.services.Carts.Remove(c.ClientIP(), c.Param("cart_item_id")); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Item removed from cart"})
}

// @Summary Place an order from the caller's cart
// @Tags orders
// @Produce json
// @Success 200 {object} models.Order
// @Failure 400 {object} detailResponse
// @Router /place-order [post]
func (g *Gateway) placeOrder(c *gin.Context) {
	order, err := g.services.Orders.Place(c.Request.Context(), c.ClientIP())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// @Summary List orders
// @Tags orders
// @Produce json
// @Param active query bool false "Only orders still shown on the kitchen board"
// @Success 200 {array} models.Order
// @Router /orders [get]
func (g *Gateway) listOrders(c *gin.Context) {
	var (
		orders []models.Order
		err    error
	)
	if c.Query("active") == "true" {
		orders, err = g.services.Orders.ListActive(c.Request.Context())
	} else {
		orders, err = g.services.Orders.List(c.Request.Context())
	}
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// @Summary Set an order's status
// @Tags orders
// @Produce json
// @Param order_id path string true "Order id"
// @Param status query string true "Accepted, Completed, Rejected or Paid"
// @Success 200 {object} models.Order
// @Failure 400 {object} detailResponse
// @Failure 404 {object} detailResponse
// @Failure 422 {object} detailResponse
// @Router /orders/{order_id}/status [post]
func (g *Gateway) updateOrderStatus(c *gin.Context) {
	status, ok := c.GetQuery("status")
	if !ok {
		g.invalid(c, "status query parameter is required")
		return
	}
	order, err := g.services.Orders.UpdateStatus(c.Request.Context(), c.Param("order_id"), models.OrderStatus(status))
	if errors.Is(err, apperr.ErrInvalidArgument) {
		c.JSON(http.StatusBadRequest, detailResponse{Detail: apperr.Message(err)})
		return
	}
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// @Summary The caller's orders, newest first
// @Tags orders
// @Produce json
// @Success 200 {array} models.Order
// @Router /history [get]
func (g *Gateway) history(c *gin.Context) {
	orders, err := g.services.Orders.History(c.Request.Context(), c.ClientIP())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// @Summary Get an order
// @Tags orders
// @Produce json
// @Param order_id path string true "Order id"
// @Success 200 {object} models.Order
// @Failure 404 {object} detailResponse
// @Router /order/{order_id} [get]
func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.services.Orders.Get(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// @Summary Delete one of the caller's orders before the cutoff
// @Tags orders
// @Produce json
// @Param order_id path string true "Order id"
// @Success 200 {object} messageResponse
// @Failure 403 {object} detailResponse
// @Failure 404 {object} detailResponse
// @Router /order/{order_id} [delete]
func (g *Gateway) deleteOrder(c *gin.Context) {
	if err := g.services.Orders.Delete(c.Request.Context(), c.Param("order_id"), c.ClientIP()); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Order successfully deleted."})
}

// @Summary Move one of the caller's orders back into the cart
// @Tags orders
// @Produce json
// @Param order_id path string true "Order id"
// @Success 200 {object} messageResponse
// @Failure 403 {object} detailResponse
// @Failure 404 {object} detailResponse
// @Router /recart/{order_id} [post]
func (g *Gateway) recartOrder(c *gin.Context) {
	if err := g.services.Orders.Recart(c.Request.Context(), c.Param("order_id"), c.ClientIP()); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Order moved to cart for modification."})
}

// @Summary Upload a menu image
// @Tags images
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image"
// @Success 200 {object} imageResponse
// @Failure 422 {object} detailResponse
// @Failure 500 {object} detailResponse
// @Router /upload-image [post]
func (g *Gateway) uploadImage(c *gin.Context) {
	if g.services.Images == nil {
		g.fail(c, apperr.New(apperr.StorageError, "Image storage is not configured"))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		g.invalid(c, "file is required")
		return
	}
	src, err := fh.Open()
	if err != nil {
		g.fail(c, apperr.Wrap(apperr.StorageError, "Could not read the uploaded file", err))
		return
	}
	rel, err := g.services.Images.Save(fh.Filename, src)
	if err != nil {
		g.fail(c, err)
		return
	}
	g.logger.Info("Image stored", zap.String("path", rel), zap.Int64("size", fh.Size))
	c.JSON(http.StatusOK, imageResponse{ImageURL: rel})
}

func (g *Gateway) invalid(c *gin.Context, msg string) {
	c.JSON(http.StatusUnprocessableEntity, detailResponse{Detail: msg})
}

// fail writes err as {"detail": ...} with the status matching its kind.
func (g *Gateway) fail(c *gin.Context, err error) {
	code := statusFor(apperr.KindOf(err))
	msg := apperr.Message(err)
	if code == http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		msg = err.Error()
	}
	c.JSON(code, detailResponse{Detail: msg})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidArgument:
		return http.StatusUnprocessableEntity
	case apperr.InvalidState:
		return http.StatusBadRequest
	case apperr.PermissionDenied, apperr.CutoffExpired:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

