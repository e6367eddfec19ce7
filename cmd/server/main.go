package main

// @title           couplechat API
// @version         1.0
// @description     REST fallback for the couplechat realtime messaging server.

// @BasePath        /api/chat

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	Execute()
}
