package api

import (
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// maxBodySize bounds JSON request bodies. Bulk writes stay well under this.
const maxBodySize = 1 << 20

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	return sonic.ConfigStd.NewDecoder(lr).Decode(out)
}

type errorBody struct {
	Error string `json:"error"`
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorBody{Error: msg})
}
