// Package cache 实现按内容哈希的分析结果缓存
//
// 缓存键是源文件内容的 blake2b 哈希：文件没变则直接复用上次
// 的问题列表，跳过函数体分析。数据流图不缓存，未使用代码和
// 污点查询只对本轮实际分析的函数生效。
package cache

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"
	"golang.org/x/crypto/blake2b"

	"github.com/tangzhangming/solastan/internal/report"
)

const (
	// CacheVersion 缓存格式版本，不匹配时整体作废
	CacheVersion = "1"

	// DefaultCacheDir 默认缓存目录
	DefaultCacheDir = ".solastan-cache"

	// indexFile 索引文件名
	indexFile = "index.json"
)

// Entry 单个源文件的缓存条目
type Entry struct {
	SourcePath string         `json:"source_path"`
	SourceHash string         `json:"source_hash"`
	Issues     []report.Issue `json:"issues"`
	AnalyzedAt time.Time      `json:"analyzed_at"`
}

// Index 缓存索引
type Index struct {
	Version   string            `json:"version"`
	Entries   map[string]*Entry `json:"entries"` // 源路径 -> 条目
	UpdatedAt time.Time         `json:"updated_at"`
}

// Manager 缓存管理器
type Manager struct {
	mu      sync.RWMutex
	dir     string
	index   *Index
	enabled bool
}

// NewManager 创建缓存管理器并加载既有索引
//
// 目录创建失败时缓存静默停用，分析照常进行。
func NewManager(dir string) *Manager {
	if dir == "" {
		dir = DefaultCacheDir
	}
	m := &Manager{dir: dir, enabled: true}
	if err := os.MkdirAll(dir, 0755); err != nil {
		m.enabled = false
		return m
	}
	m.index = m.loadIndex()
	return m
}

// loadIndex 读取索引文件，损坏或版本不匹配时重建
func (m *Manager) loadIndex() *Index {
	fresh := &Index{Version: CacheVersion, Entries: make(map[string]*Entry)}

	data, err := os.ReadFile(filepath.Join(m.dir, indexFile))
	if err != nil {
		return fresh
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil || idx.Version != CacheVersion {
		return fresh
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]*Entry)
	}
	return &idx
}

// HashContent 计算源内容的缓存键
func HashContent(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Lookup 查询文件的缓存结果
//
// 命中当且仅当路径已有条目且内容哈希一致。
func (m *Manager) Lookup(path string, content []byte) ([]report.Issue, bool) {
	if !m.enabled {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.index.Entries[path]
	if !ok || e.SourceHash != HashContent(content) {
		return nil, false
	}
	return e.Issues, true
}

// Store 记录文件的分析结果
func (m *Manager) Store(path string, content []byte, issues []report.Issue) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index.Entries[path] = &Entry{
		SourcePath: path,
		SourceHash: HashContent(content),
		Issues:     issues,
		AnalyzedAt: time.Now().UTC(),
	}
}

// Invalidate 移除文件的缓存条目
func (m *Manager) Invalidate(path string) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.index.Entries, path)
}

// Save 把索引写回磁盘
func (m *Manager) Save() error {
	if !m.enabled {
		return nil
	}
	m.mu.Lock()
	m.index.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(m.index)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode cache index: %w", err)
	}

	tmp := filepath.Join(m.dir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache index: %w", err)
	}
	return os.Rename(tmp, filepath.Join(m.dir, indexFile))
}

// Len 返回索引条目数
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.index == nil {
		return 0
	}
	return len(m.index.Entries)
}
