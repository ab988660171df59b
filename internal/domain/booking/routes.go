package booking

import "github.com/gin-gonic/gin"

// RegisterGuestRoutes registers the public booking routes.
func RegisterGuestRoutes(r *gin.RouterGroup, h *Handler, mw ...gin.HandlerFunc) {
	g := r.Group("", mw...)
	{
		g.POST("/quotes", h.Quote)
		g.POST("/bookings", h.CreateBooking)
		g.GET("/bookings/:number", h.GetByNumber)
		g.POST("/bookings/:number/payments", h.SubmitPayment)
	}
}

// RegisterAdminRoutes registers staff routes. r must already carry auth.
func RegisterAdminRoutes(r *gin.RouterGroup, h *Handler) {
	bookings := r.Group("/bookings")
	{
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/history", h.History)
		bookings.POST("/:id/verify", h.Verify)
		bookings.POST("/:id/reject", h.Reject)
		bookings.POST("/:id/check-in", h.CheckIn)
		bookings.POST("/:id/check-out", h.CheckOut)
		bookings.POST("/:id/cancel", h.Cancel)
	}

	payments := r.Group("/payments")
	{
		payments.POST("/:id/verify", h.VerifyPayment)
		payments.POST("/:id/reject", h.RejectPayment)
	}

	r.GET("/properties/:id/availability", h.PropertyCalendar)
}
