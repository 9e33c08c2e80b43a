package staff

import "github.com/stampcard-next/internal/provider"

// Handler 店员侧接口处理器入口
type Handler struct {
	*provider.Container
}

// New 创建店员侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
