package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"betternews/internal/apperr"
	"betternews/internal/services"
	"betternews/internal/utils"
)

// SuccessResponse 所有成功响应的外层结构
type SuccessResponse struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message"`
	Data       interface{}          `json:"data,omitempty"`
	Pagination *services.Pagination `json:"pagination,omitempty"`
}

func respond(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, SuccessResponse{Success: true, Message: message, Data: data})
}

func respondPage(c *gin.Context, message string, data interface{}, p services.Pagination) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: message, Data: data, Pagination: &p})
}

// fail 交给 middleware.ErrorHandler 输出
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// pathID 解析路由中的数字 ID
func pathID(c *gin.Context, name string) (uint, error) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		return 0, apperr.Validation("Invalid id", map[string]string{name: "Expected a positive number"})
	}
	return id, nil
}

// pageRequest 读取 page/limit/sortBy/orderBy；非数字的 page/limit 视为校验错误
func pageRequest(c *gin.Context) (services.PageRequest, error) {
	req := services.PageRequest{
		SortBy:  c.Query("sortBy"),
		OrderBy: c.Query("orderBy"),
	}
	for _, f := range []struct {
		name string
		dst  *int
	}{{"page", &req.Page}, {"limit", &req.Limit}} {
		raw := c.Query(f.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n == 0 {
			return req, apperr.Validation("Invalid "+f.name, map[string]string{f.name: "Expected a positive number"})
		}
		*f.dst = n
	}
	return req, nil
}
