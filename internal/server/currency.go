package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListCurrencies(c *gin.Context) {
	c.JSON(http.StatusOK, s.display.Get().Catalog())
}
