// Package attachment 附件存储
// 消息表只保存附件元数据和存储键，二进制内容由 Store 持有
package attachment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"employee_chat_server/pkg/errorx"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stored 保存结果
type Stored struct {
	Key         string
	ContentType string
	Size        int64
}

// Store 附件存储
type Store interface {
	// Save 保存附件，contentType 为空时按内容嗅探
	Save(ctx context.Context, filename, contentType string, r io.Reader) (Stored, error)
	// Open 按存储键读取附件
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// DiskStore 本地磁盘实现
type DiskStore struct {
	dir string
}

// NewDiskStore 创建本地附件存储，目录不存在时自动创建
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir}, nil
}

// path 存储键只允许单层文件名，防止目录穿越
func (s *DiskStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", errorx.Newf(errorx.CodeInvalidParam, "非法附件键 %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *DiskStore) Save(ctx context.Context, filename, contentType string, r io.Reader) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}

	// 读取前 512 字节进行 MIME 类型嗅探
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Stored{}, err
	}
	head = head[:n]
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(head)
	}

	key := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	dst, err := s.path(key)
	if err != nil {
		return Stored{}, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return Stored{}, err
	}

	size, err := io.Copy(out, io.MultiReader(bytes.NewReader(head), r))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// 写入失败时删除残留文件
		_ = os.Remove(dst)
		return Stored{}, err
	}

	zap.L().Info("附件保存成功", zap.String("key", key), zap.Int64("size", size))
	return Stored{Key: key, ContentType: contentType, Size: size}, nil
}

func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errorx.Wrapf(err, errorx.CodeNotFound, "附件 %s 不存在", key)
		}
		return nil, err
	}
	return f, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

var _ Store = (*DiskStore)(nil)
