package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/domain/breeds"
)

// BreedHandler serves the reference growth curves used for weight deviation.
type BreedHandler struct {
	table breeds.Table
}

func NewBreedHandler(table breeds.Table) *BreedHandler {
	return &BreedHandler{table: table}
}

func (h *BreedHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"breeds": h.table.Names()})
}

func (h *BreedHandler) Curve(c *gin.Context) {
	name := c.Param("name")
	curve := h.table.Curve(name)
	if len(curve) == 0 {
		fail(c, apperror.New(apperror.CodeNotFound, "breed "+name+" has no growth curve", http.StatusNotFound).
			WithDetail("breed", name))
		return
	}
	c.JSON(http.StatusOK, gin.H{"breed": name, "weights_grams": curve})
}
