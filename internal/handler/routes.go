package handler

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts the sale and stock endpoints on an authenticated group
func RegisterRoutes(api *echo.Group, sales *SaleHandler, stock *StockHandler) {
	saleAPI := api.Group("/sales")
	saleAPI.POST("", sales.CreateSale)
	saleAPI.GET("/:id", sales.GetSale)
	saleAPI.GET("/invoice/:invoice", sales.GetSaleByInvoice)
	saleAPI.POST("/:id/refund", sales.RefundSale)
	saleAPI.POST("/:id/cancel", sales.CancelSale)

	productAPI := api.Group("/products")
	productAPI.GET("/:id/stock", stock.GetStock)
	productAPI.POST("/:id/restock", stock.Restock)
}
