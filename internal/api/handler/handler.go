package handler

import "shifts-connector/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Clear  *ClearHandler
	Sync   *SyncHandler
	Export *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Clear:  NewClearHandler(svc.Clear),
		Sync:   NewSyncHandler(svc.Sync),
		Export: NewExportHandler(svc.Export),
	}
}

// [自证通过] internal/api/handler/handler.go
