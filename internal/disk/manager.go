// Package disk creates and removes per-VM copy-on-write disks with qemu-img.
//
// Each VM gets a single qcow2 overlay at {base_dir}/{vm_name}.{ext} whose
// backing file is the base image recorded in the image catalog. Base images
// are never modified.
package disk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/jbweber/hearth/internal/naming"
	"github.com/jbweber/hearth/internal/store"
)

const (
	// DefaultBaseDir is libvirt's default image directory.
	DefaultBaseDir = "/var/lib/libvirt/images"

	// DefaultExt is the disk file extension.
	DefaultExt = "qcow2"

	// DefaultQemuImg is the qemu-img binary looked up on PATH.
	DefaultQemuImg = "qemu-img"

	// DefaultCreateTimeout bounds a single qemu-img invocation.
	DefaultCreateTimeout = 60 * time.Second

	// FilePermissions are the permissions for VM disk files.
	FilePermissions = 0644
)

var (
	// ErrImageNotFound is returned when no image record matches the requested name.
	ErrImageNotFound = errors.New("image not found")

	// ErrImageFileMissing is returned when the image record points at a nonexistent file.
	ErrImageFileMissing = errors.New("image file missing")

	// ErrCreateFailed wraps qemu-img failures.
	ErrCreateFailed = errors.New("failed to create disk")

	// ErrDiskExists is returned when the target disk file is already present.
	// Disk paths are derived from the VM name alone, so the file may belong
	// to a VM in another project.
	ErrDiskExists = errors.New("disk already exists")
)

// ImageCatalog resolves image names to records.
// In production this is satisfied by *store.ImageRepository.
type ImageCatalog interface {
	FindByName(ctx context.Context, name string) (*store.Image, error)
}

// Options configures a Manager. Zero values take the package defaults.
type Options struct {
	BaseDir       string
	Ext           string
	QemuImg       string
	UseSudo       bool
	CreateTimeout time.Duration

	// ChownQEMU hands new disks to the QEMU user so libvirt can open them.
	ChownQEMU bool
}

// Manager handles disk image operations for VMs.
type Manager struct {
	images  ImageCatalog
	baseDir string
	ext     string
	qemuImg string
	sudo    bool
	timeout time.Duration
	chown   bool
	logger  *slog.Logger
}

// NewManager creates a disk manager backed by the given image catalog.
func NewManager(images ImageCatalog, opts Options, logger *slog.Logger) *Manager {
	if opts.BaseDir == "" {
		opts.BaseDir = DefaultBaseDir
	}
	if opts.Ext == "" {
		opts.Ext = DefaultExt
	}
	if opts.QemuImg == "" {
		opts.QemuImg = DefaultQemuImg
	}
	if opts.CreateTimeout == 0 {
		opts.CreateTimeout = DefaultCreateTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		images:  images,
		baseDir: opts.BaseDir,
		ext:     opts.Ext,
		qemuImg: opts.QemuImg,
		sudo:    opts.UseSudo,
		timeout: opts.CreateTimeout,
		chown:   opts.ChownQEMU,
		logger:  logger,
	}
}

// DiskPath returns the deterministic disk path for a VM.
func (m *Manager) DiskPath(vmName string) string {
	return filepath.Join(m.baseDir, naming.DiskFileName(vmName, m.ext))
}

// ValidateAndLocate returns the backing file path of the named image.
func (m *Manager) ValidateAndLocate(ctx context.Context, imageName string) (string, error) {
	img, err := m.images.FindByName(ctx, imageName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrImageNotFound, imageName)
		}
		return "", fmt.Errorf("failed to look up image %s: %w", imageName, err)
	}

	if _, err := os.Stat(img.Filepath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s (%s)", ErrImageFileMissing, imageName, img.Filepath)
		}
		return "", fmt.Errorf("failed to stat image %s: %w", img.Filepath, err)
	}

	return img.Filepath, nil
}

// CreateDisk clones sourcePath into a new qcow2 overlay for vmName and
// returns the new disk's path. An existing file at that path is never
// overwritten; ErrDiskExists is returned and nothing is touched.
func (m *Manager) CreateDisk(ctx context.Context, vmName, sourcePath string) (string, error) {
	diskPath := m.DiskPath(vmName)

	if _, err := os.Lstat(diskPath); err == nil {
		return "", fmt.Errorf("%w: %s", ErrDiskExists, diskPath)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat disk %s: %w", diskPath, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	args := []string{
		"create",
		"-f", "qcow2",
		"-F", "qcow2",
		"-b", sourcePath,
		diskPath,
	}
	cmd := m.command(ctx, m.qemuImg, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w %s: qemu-img timed out after %s", ErrCreateFailed, diskPath, m.timeout)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w %s: %s not found, install qemu-img", ErrCreateFailed, diskPath, m.qemuImg)
		}
		return "", fmt.Errorf("%w %s: %v\nOutput: %s", ErrCreateFailed, diskPath, err, string(output))
	}

	m.logger.Debug("created disk", "vm", vmName, "path", diskPath, "backing", sourcePath)

	if m.chown {
		if err := m.setFileOwnership(diskPath); err != nil {
			if rmErr := m.DeleteDisk(diskPath); rmErr != nil {
				m.logger.Warn("failed to remove disk after ownership error", "path", diskPath, "error", rmErr)
			}
			return "", err
		}
	}

	return diskPath, nil
}

// DeleteDisk removes the disk at path. A missing file is not an error.
func (m *Manager) DeleteDisk(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}

	if os.IsPermission(err) && m.sudo {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if output, err := exec.CommandContext(ctx, "sudo", "rm", "-f", path).CombinedOutput(); err != nil {
			return fmt.Errorf("failed to delete disk %s: %w\nOutput: %s", path, err, string(output))
		}
		return nil
	}

	return fmt.Errorf("failed to delete disk %s: %w", path, err)
}

// DeleteDiskByName removes the disk for vmName.
func (m *Manager) DeleteDiskByName(vmName string) error {
	return m.DeleteDisk(m.DiskPath(vmName))
}

func (m *Manager) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	if m.sudo {
		return exec.CommandContext(ctx, "sudo", append([]string{"-n", name}, args...)...)
	}
	return exec.CommandContext(ctx, name, args...)
}

// setFileOwnership hands path to the QEMU user.
func (m *Manager) setFileOwnership(path string) error {
	uid, gid := qemuOwner()
	if err := os.Chown(path, uid, gid); err != nil {
		return fmt.Errorf("failed to set ownership on %s: %w", path, err)
	}
	if err := os.Chmod(path, FilePermissions); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	return nil
}
