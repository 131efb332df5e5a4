package handler

import (
	"Atrium/internal/api/dto"
	"Atrium/internal/pkg/minio"
	"Atrium/internal/pkg/response"
	"Atrium/internal/service"
	log "log/slog"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MediaHandler struct{}

func NewMediaHandler() *MediaHandler {
	return &MediaHandler{}
}

// GetUploadURL 申请附件直传地址。
// 服务端只签发地址不经手文件内容，客户端直传后把 file_url 填进消息附件。
func (s *MediaHandler) GetUploadURL(c *gin.Context) {
	var req dto.UploadURLReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	ext := path.Ext(req.FileName)
	objectName := time.Now().Format("2006/01/02/") + uuid.NewString() + ext

	uploadURL, err := minio.PresignedPutURL(c.Request.Context(), objectName, 15*time.Minute)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "生成预签名上传地址失败", "err", err)
		response.Error(c, service.UnExpectedError)
		return
	}

	response.Success(c, dto.UploadURLResp{
		UploadURL: uploadURL,
		FileURL:   minio.GetPublicURL(objectName),
	})
}
