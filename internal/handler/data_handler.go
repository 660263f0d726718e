package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-chat/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DataHandler 实验数据汇总处理器
type DataHandler struct {
	svc *service.Services
}

// NewDataHandler 创建数据汇总处理器
func NewDataHandler(svc *service.Services) *DataHandler {
	return &DataHandler{svc: svc}
}

// GetExperimentData 按智能体分组返回实验数据
func (h *DataHandler) GetExperimentData(c *gin.Context) {
	data, err := h.svc.Export.ExperimentData(c.Request.Context(), c.Param("experimentId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}

// DownloadWorkbook 下载 xlsx，包含 Agents/Users/Conversations/Messages 四个工作表
func (h *DataHandler) DownloadWorkbook(c *gin.Context) {
	id := c.Param("experimentId")

	var buf bytes.Buffer
	if err := h.svc.Export.WriteWorkbook(c.Request.Context(), id, &buf); err != nil {
		Error(c, err)
		return
	}

	attachment(c, fmt.Sprintf("experiment-%s.xlsx", id))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// DownloadCSV 下载单张表的 CSV，sheet 默认为 messages
func (h *DataHandler) DownloadCSV(c *gin.Context) {
	id := c.Param("experimentId")
	sheet := c.DefaultQuery("sheet", "messages")

	var buf bytes.Buffer
	if err := h.svc.Export.WriteCSV(c.Request.Context(), id, sheet, &buf); err != nil {
		Error(c, err)
		return
	}

	attachment(c, fmt.Sprintf("experiment-%s-%s.csv", id, strings.ToLower(sheet)))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
}
