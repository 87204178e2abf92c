package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Marketing and app pages are presentation stubs; the real front end is a
// separate deployment. They exist so the route guard has pages to guard.

func pageHandler(title, body string) gin.HandlerFunc {
	page := "<!DOCTYPE html><html><head><title>" + title +
		"</title></head><body><h1>" + title + "</h1><p>" + body + "</p></body></html>"
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	}
}

// RegisterPages mounts the public and guarded page routes.
func (s *Server) RegisterPages(router gin.IRoutes) {
	router.GET("/", pageHandler("NovaHunt", "Find anyone's business contact details."))
	router.GET("/pricing", pageHandler("Pricing", "Free forever, or Pro for unlimited hunting."))
	router.GET("/contact", pageHandler("Contact", "hello@novahunt.example"))
	router.GET("/signin", pageHandler("Sign in", "Sign in to your account."))
	router.GET("/signup", pageHandler("Sign up", "Create your account."))
	router.GET("/dashboard", pageHandler("Dashboard", "Your searches and reveals."))
	router.GET("/dashboard/contacts", pageHandler("Contacts", "Saved contacts."))
}
