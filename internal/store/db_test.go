package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaDDLCoversAllTables(t *testing.T) {
	for _, table := range []string{
		"TaiKhoan", "NamHoc", "GiaoVien", "LopHoc", "HocSinh",
		"PhuHuynh", "PhuHuynh_HocSinh", "PhuHuynh_Images", "DiemDanh",
	} {
		assert.Contains(t, schemaDDL, table)
	}
	assert.Contains(t, schemaDDL, "uq_diemdanh_hs_ngay")
}

func TestSchemaDDLIsRerunnable(t *testing.T) {
	// Bootstrap runs on every startup, so every CREATE must be guarded.
	assert.Equal(t,
		strings.Count(schemaDDL, "CREATE TABLE"),
		strings.Count(schemaDDL, "CREATE TABLE IF NOT EXISTS"))
	assert.Equal(t,
		strings.Count(schemaDDL, "CREATE INDEX"),
		strings.Count(schemaDDL, "CREATE INDEX IF NOT EXISTS"))
	assert.Equal(t,
		strings.Count(schemaDDL, "CREATE UNIQUE INDEX"),
		strings.Count(schemaDDL, "CREATE UNIQUE INDEX IF NOT EXISTS"))
}
