// Пакет filestore — хранение загруженных документов на диске.
// Streaming-запись с подсчётом SHA-256 на лету, двухуровневое
// ветвление директорий по UUID, атомарная запись через temp + rename.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore — управление документами заявок на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (OM_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения документа.
type SaveResult struct {
	// StorageRef — относительный путь документа в dataDir
	StorageRef string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого
	Checksum string
}

// New создаёт новый FileStore. Проверяет и создаёт директорию
// если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// SaveDocument записывает данные из reader на диск с подсчётом SHA-256 на лету.
// Путь хранения: {aa}/{bb}/{uuid}{ext}, где aa и bb — первые байты UUID.
// Ветвление удерживает размер директорий при большом числе заявок.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) SaveDocument(reader io.Reader, originalFilename string) (*SaveResult, error) {
	ref := generateStorageRef(originalFilename)
	fullPath := filepath.Join(fs.dataDir, ref)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания директории: %w", err)
	}

	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StorageRef: ref,
		Size:       size,
		Checksum:   hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает документ для чтения и возвращает *os.File.
// ref — относительный путь документа в dataDir.
// Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(ref string) (*os.File, error) {
	fullPath, err := fs.resolve(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("документ не найден: %s", ref)
		}
		return nil, fmt.Errorf("ошибка открытия документа %s: %w", ref, err)
	}

	return f, nil
}

// Delete удаляет документ с диска.
// Возвращает nil если документ уже не существует.
func (fs *FileStore) Delete(ref string) error {
	fullPath, err := fs.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления документа %s: %w", ref, err)
	}
	return nil
}

// Exists проверяет существование документа на диске.
func (fs *FileStore) Exists(ref string) bool {
	fullPath, err := fs.resolve(ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// Size возвращает размер документа на диске.
func (fs *FileStore) Size(ref string) (int64, error) {
	fullPath, err := fs.resolve(ref)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о документе %s: %w", ref, err)
	}
	return info.Size(), nil
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// resolve превращает относительный ref в абсолютный путь внутри dataDir.
// Отвергает ref, выходящие за пределы dataDir (path traversal).
func (fs *FileStore) resolve(ref string) (string, error) {
	cleaned := filepath.Clean(ref)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("недопустимый путь документа: %q", ref)
	}
	return filepath.Join(fs.dataDir, cleaned), nil
}

// generateStorageRef генерирует относительный путь хранения документа.
// Формат: {aa}/{bb}/{uuid}{ext}.
// Пример: 3f/a1/3fa1c9d2-....pdf
func generateStorageRef(originalFilename string) string {
	ext := sanitizeExt(filepath.Ext(originalFilename))
	id := uuid.New().String()
	return filepath.Join(id[:2], id[2:4], id+ext)
}

// sanitizeExt оставляет в расширении только безопасные символы.
// Пустое или подозрительное расширение отбрасывается.
func sanitizeExt(ext string) string {
	if ext == "" || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return ""
		}
	}
	return strings.ToLower(ext)
}
