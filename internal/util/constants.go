package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 封面只允许图片
const MimeImage = "image/"

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)
