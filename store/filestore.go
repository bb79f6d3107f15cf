package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var ErrNoProject = errors.New("工程文件不存在")

// FileStore 把工程保存为一个 JSON 文件
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (Project, error) {
	var p Project
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, fmt.Errorf("%s：%w", s.path, ErrNoProject)
		}
		return p, fmt.Errorf("读取工程文件失败：%w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("解析工程文件失败：%w", err)
	}
	return p, nil
}

// Save 先写临时文件再重命名，避免写到一半的文件被读取
func (s *FileStore) Save(p Project) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化工程失败：%w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建工程目录失败：%w", err)
	}
	tmp, err := os.CreateTemp(dir, ".project-*.json")
	if err != nil {
		return fmt.Errorf("创建临时文件失败：%w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("写入工程文件失败：%w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入工程文件失败：%w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("保存工程文件失败：%w", err)
	}
	return nil
}
