package dto

// UploadURLReq 申请附件直传地址
type UploadURLReq struct {
	FileName string `json:"file_name" binding:"required"`
	MimeType string `json:"mime_type" binding:"required"`
}

// UploadURLResp 预签名直传地址与最终可访问 URL
type UploadURLResp struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}
