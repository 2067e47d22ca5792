package service

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/thejosephstevens/model-experiments/config"
)

const DefaultSSHServerPort = 22

var (
	ErrSSHClientFactoryNil           = errors.New("ssh client factory is nil")
	ErrStorageServerNameRequired     = errors.New("storage server name is required")
	ErrStorageServerNotFound         = errors.New("storage server not found in config")
	ErrSSHServerIPRequired           = errors.New("server ip is required")
	ErrSSHServerUserRequired         = errors.New("ssh server user is required")
	ErrSSHPrivateKeyPathRequired     = errors.New("ssh private key path is required")
	ErrSSHFilePathRequired           = errors.New("file path is required")
	ErrLocalSourceDirNotFound        = errors.New("local source directory not found")
	ErrLocalSourcePathNotRegularFile = errors.New("local source path is not a regular file")
	ErrRemoteModelAlreadyExists      = errors.New("remote model directory already exists")
)

var defaultSSHTimeout = 15 * time.Second

// SSHServerConfig is the resolved connection description of one storage server.
type SSHServerConfig struct {
	Name           string
	IP             string
	Port           int
	User           string
	PrivateKeyPath string
	RemoteRoot     string
	Timeout        time.Duration
}

// ModelUploadResult summarizes one model directory transfer.
type ModelUploadResult struct {
	ServerName string        `json:"server_name"`
	ServerIP   string        `json:"server_ip"`
	ModelName  string        `json:"model_name"`
	LocalDir   string        `json:"local_dir"`
	RemoteDir  string        `json:"remote_dir"`
	Files      int           `json:"files"`
	Bytes      int64         `json:"bytes"`
	Cost       time.Duration `json:"cost"`
}

type remoteFileClient interface {
	UploadFile(localPath, remotePath string) (int64, error)
	FileExists(remotePath string) (bool, error)
	Close() error
}

type remoteFileClientFactory interface {
	New(server SSHServerConfig) (remoteFileClient, error)
}

// TransferService pushes trained model directories to the storage servers
// listed in the config file.
type TransferService struct {
	serverConfigs map[string]SSHServerConfig
	clientFactory remoteFileClientFactory
}

func NewTransferService() *TransferService {
	serverConfigs := make(map[string]SSHServerConfig)
	if config.AppConfig != nil {
		for _, server := range config.AppConfig.StorageServers {
			serverConfigs[server.Name] = SSHServerConfig{
				Name:           server.Name,
				IP:             server.IP,
				Port:           server.Port,
				User:           server.User,
				PrivateKeyPath: server.PrivateKeyPath,
				RemoteRoot:     server.RemoteRoot,
				Timeout:        defaultSSHTimeout,
			}
		}
	}
	return &TransferService{
		serverConfigs: serverConfigs,
		clientFactory: &sshSFTPClientFactory{},
	}
}

// UploadModelDir copies every regular file under localDir to
// <remote_root>/<modelName>/ on the named server, preserving relative paths.
// An existing remote directory aborts the upload unless overwrite is set.
func (s *TransferService) UploadModelDir(localDir, modelName, serverName string, overwrite bool) (ModelUploadResult, error) {
	logger := serviceLogger().With("service", "TransferService", "method", "UploadModelDir")
	start := time.Now()

	logger.Info(
		"upload model dir begin",
		"server_name", strings.TrimSpace(serverName),
		"model_name", strings.TrimSpace(modelName),
		"local_dir", strings.TrimSpace(localDir),
	)

	name := strings.TrimSpace(modelName)
	if name == "" || strings.TrimSpace(localDir) == "" {
		logger.Warn("upload model dir failed: model name or local dir is empty")
		return ModelUploadResult{}, ErrSSHFilePathRequired
	}
	if s.clientFactory == nil {
		logger.Warn("upload model dir failed: ssh client factory is nil")
		return ModelUploadResult{}, ErrSSHClientFactoryNil
	}

	normalizedLocal := filepath.Clean(strings.TrimSpace(localDir))
	info, err := os.Stat(normalizedLocal)
	if err != nil || !info.IsDir() {
		logger.Warn("upload model dir failed: local source directory not found", "local_dir", normalizedLocal)
		return ModelUploadResult{}, ErrLocalSourceDirNotFound
	}

	server, err := s.resolveServer(serverName)
	if err != nil {
		logger.Error("upload model dir failed: resolve server failed", "server_name", serverName, "error", err)
		return ModelUploadResult{}, err
	}

	remoteDir, err := normalizeRemoteFilePath(path.Join(server.RemoteRoot, sanitizePathComponent(name)))
	if err != nil {
		logger.Warn("upload model dir failed: invalid remote path", "remote_root", server.RemoteRoot, "error", err)
		return ModelUploadResult{}, err
	}

	client, err := s.clientFactory.New(server)
	if err != nil {
		logger.Error("upload model dir failed: create ssh client failed", "server_name", server.Name, "server_ip", server.IP, "error", err)
		return ModelUploadResult{}, err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Error("upload model dir close client failed", "server_name", server.Name, "error", closeErr)
		}
	}()

	if !overwrite {
		exists, err := client.FileExists(remoteDir)
		if err != nil {
			logger.Error("upload model dir failed: stat remote dir failed", "remote_dir", remoteDir, "error", err)
			return ModelUploadResult{}, err
		}
		if exists {
			logger.Warn("upload model dir failed: remote dir already exists", "remote_dir", remoteDir)
			return ModelUploadResult{}, ErrRemoteModelAlreadyExists
		}
	}

	var files int
	var totalBytes int64
	err = filepath.WalkDir(normalizedLocal, func(localPath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(normalizedLocal, localPath)
		if err != nil {
			return err
		}
		remotePath := path.Join(remoteDir, filepath.ToSlash(rel))
		written, err := client.UploadFile(localPath, remotePath)
		if err != nil {
			return fmt.Errorf("upload %s failed: %w", rel, err)
		}
		files++
		totalBytes += written
		return nil
	})
	if err != nil {
		logger.Error(
			"upload model dir failed",
			"server_name", server.Name,
			"server_ip", server.IP,
			"local_dir", normalizedLocal,
			"remote_dir", remoteDir,
			"error", err,
		)
		return ModelUploadResult{}, err
	}

	result := ModelUploadResult{
		ServerName: server.Name,
		ServerIP:   server.IP,
		ModelName:  name,
		LocalDir:   filepath.ToSlash(normalizedLocal),
		RemoteDir:  remoteDir,
		Files:      files,
		Bytes:      totalBytes,
		Cost:       time.Since(start),
	}

	logger.Info(
		"upload model dir success",
		"server_name", server.Name,
		"server_ip", server.IP,
		"model_name", name,
		"files", files,
		"bytes", totalBytes,
		"remote_dir", remoteDir,
		"cost_ms", result.Cost.Milliseconds(),
	)
	return result, nil
}

// ServerNames lists the configured storage servers, for CLI help output.
func (s *TransferService) ServerNames() []string {
	names := make([]string, 0, len(s.serverConfigs))
	for name := range s.serverConfigs {
		names = append(names, name)
	}
	return names
}

func (s *TransferService) resolveServer(serverName string) (SSHServerConfig, error) {
	logger := serviceLogger().With("service", "TransferService", "method", "resolveServer")

	name := strings.TrimSpace(serverName)
	if name == "" {
		logger.Warn("resolve server failed: server name is empty")
		return SSHServerConfig{}, ErrStorageServerNameRequired
	}

	cfg, ok := s.serverConfigs[name]
	if !ok {
		logger.Warn("resolve server failed: server not in config", "server_name", name)
		return SSHServerConfig{}, fmt.Errorf("%w: %s", ErrStorageServerNotFound, name)
	}

	normalized, err := normalizeServerConfig(cfg)
	if err != nil {
		logger.Error("resolve server failed: invalid mapped config", "server_name", name, "error", err)
		return SSHServerConfig{}, err
	}
	normalized.Name = name
	return normalized, nil
}

func normalizeServerConfig(cfg SSHServerConfig) (SSHServerConfig, error) {
	normalized := cfg
	normalized.IP = strings.TrimSpace(normalized.IP)
	normalized.User = strings.TrimSpace(normalized.User)
	normalized.PrivateKeyPath = strings.TrimSpace(normalized.PrivateKeyPath)
	normalized.RemoteRoot = strings.TrimSpace(normalized.RemoteRoot)
	if normalized.Port == 0 {
		normalized.Port = DefaultSSHServerPort
	}
	if normalized.Timeout <= 0 {
		normalized.Timeout = defaultSSHTimeout
	}
	if normalized.RemoteRoot == "" {
		normalized.RemoteRoot = "/data/models"
	}
	if normalized.IP == "" {
		return SSHServerConfig{}, ErrSSHServerIPRequired
	}
	if normalized.User == "" {
		return SSHServerConfig{}, ErrSSHServerUserRequired
	}
	if normalized.PrivateKeyPath == "" {
		return SSHServerConfig{}, ErrSSHPrivateKeyPathRequired
	}
	return normalized, nil
}

func normalizeRemoteFilePath(rawPath string) (string, error) {
	value := strings.TrimSpace(strings.ReplaceAll(rawPath, "\\", "/"))
	if value == "" {
		return "", ErrSSHFilePathRequired
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	value = path.Clean(value)
	if value == "/" || value == "." {
		return "", ErrSSHFilePathRequired
	}
	return value, nil
}

type sshSFTPClientFactory struct{}

func (f *sshSFTPClientFactory) New(server SSHServerConfig) (remoteFileClient, error) {
	return newSSHSFTPClient(server)
}

type sshSFTPClient struct {
	server     SSHServerConfig
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

func newSSHSFTPClient(server SSHServerConfig) (*sshSFTPClient, error) {
	normalized, err := normalizeServerConfig(server)
	if err != nil {
		return nil, err
	}

	keyBytes, err := os.ReadFile(normalized.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key failed: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key failed: %w", err)
	}

	clientConfig := &ssh.ClientConfig{
		User: normalized.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         normalized.Timeout,
	}

	address := net.JoinHostPort(normalized.IP, strconv.Itoa(normalized.Port))
	sshClient, err := ssh.Dial("tcp", address, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("dial ssh failed: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("create sftp client failed: %w", err)
	}

	return &sshSFTPClient{
		server:     normalized,
		sshClient:  sshClient,
		sftpClient: sftpClient,
	}, nil
}

func (c *sshSFTPClient) UploadFile(localPath, remotePath string) (int64, error) {
	normalizedRemote, err := normalizeRemoteFilePath(remotePath)
	if err != nil {
		return 0, err
	}

	src, err := os.Open(filepath.Clean(localPath))
	if err != nil {
		return 0, fmt.Errorf("open local file failed: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat local file failed: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, ErrLocalSourcePathNotRegularFile
	}

	remoteDir := path.Dir(normalizedRemote)
	if err := c.sftpClient.MkdirAll(remoteDir); err != nil {
		return 0, fmt.Errorf("create remote directory failed: %w", err)
	}

	dst, err := c.sftpClient.Create(normalizedRemote)
	if err != nil {
		return 0, fmt.Errorf("create remote file failed: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		return 0, fmt.Errorf("write remote file failed: %w", err)
	}

	return written, nil
}

func (c *sshSFTPClient) FileExists(remotePath string) (bool, error) {
	normalizedRemote, err := normalizeRemoteFilePath(remotePath)
	if err != nil {
		return false, err
	}

	_, err = c.sftpClient.Stat(normalizedRemote)
	if err != nil {
		if isNotExistError(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat remote file failed: %w", err)
	}
	return true, nil
}

func (c *sshSFTPClient) Close() error {
	var firstErr error
	if c.sftpClient != nil {
		if err := c.sftpClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.sshClient != nil {
		if err := c.sshClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func isNotExistError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) || os.IsNotExist(err) {
		return true
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "not exist") || strings.Contains(message, "no such file")
}
