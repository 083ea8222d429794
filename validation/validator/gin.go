package validator

import (
	"github.com/gin-gonic/gin"
)

// ShouldBindAndValidateStruct binds the request body and validates the result.
// The returned map is empty when the payload is valid.
func ShouldBindAndValidateStruct(c *gin.Context, obj any) (map[string]string, error) {
	if err := c.ShouldBind(obj); err != nil {
		return nil, err
	}
	return ValidateStruct(obj), nil
}
