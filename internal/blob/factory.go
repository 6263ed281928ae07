package blob

import (
	"context"
	"fmt"
	"os"
)

// OpenFromEnv selects a blob backend using environment variables:
//
//	ZONECORE_BLOB_DRIVER: memory|filesystem|s3 (default filesystem)
//	ZONECORE_BLOB_FS_ROOT: root directory for the filesystem driver
//	ZONECORE_BLOB_S3_*: see OpenS3FromEnv
func OpenFromEnv(ctx context.Context) (Store, error) {
	driver := os.Getenv("ZONECORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFilesystem:
		root := os.Getenv("ZONECORE_BLOB_FS_ROOT")
		if root == "" {
			root = "zonecore-archives"
		}
		return NewFilesystemStore(root)
	case DriverS3:
		return OpenS3FromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
