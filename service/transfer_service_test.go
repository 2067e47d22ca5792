package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemoteFileClientFactory struct {
	client      *fakeRemoteFileClient
	serverCalls []SSHServerConfig
	newErr      error
}

func (f *fakeRemoteFileClientFactory) New(server SSHServerConfig) (remoteFileClient, error) {
	if f.newErr != nil {
		return nil, f.newErr
	}
	f.serverCalls = append(f.serverCalls, server)
	return f.client, nil
}

type fakeRemoteFileClient struct {
	remoteFiles   map[string][]byte
	remoteDirs    map[string]bool
	uploadErr     error
	existsErr     error
	closeErr      error
	uploadedPaths []string
}

func (f *fakeRemoteFileClient) UploadFile(localPath, remotePath string) (int64, error) {
	if f.uploadErr != nil {
		return 0, f.uploadErr
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	if f.remoteFiles == nil {
		f.remoteFiles = make(map[string][]byte)
	}
	f.remoteFiles[remotePath] = content
	f.uploadedPaths = append(f.uploadedPaths, remotePath)
	return int64(len(content)), nil
}

func (f *fakeRemoteFileClient) FileExists(remotePath string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if f.remoteDirs[remotePath] {
		return true, nil
	}
	_, ok := f.remoteFiles[remotePath]
	return ok, nil
}

func (f *fakeRemoteFileClient) Close() error {
	return f.closeErr
}

func transferFixture(factory remoteFileClientFactory) *TransferService {
	return &TransferService{
		serverConfigs: map[string]SSHServerConfig{
			"lab-a100": {
				Name:           "lab-a100",
				IP:             "10.0.0.5",
				Port:           22,
				User:           "deploy",
				PrivateKeyPath: "/home/deploy/.ssh/id_rsa",
				RemoteRoot:     "/data/models",
			},
		},
		clientFactory: factory,
	}
}

func writeModelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pytorch_model.bin"), []byte("weights"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "checkpoint-500"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkpoint-500", "optimizer.pt"), []byte("state"), 0o644))
	return dir
}

func TestTransferServiceUploadModelDir(t *testing.T) {
	client := &fakeRemoteFileClient{}
	factory := &fakeRemoteFileClientFactory{client: client}
	svc := transferFixture(factory)
	localDir := writeModelDir(t)

	result, err := svc.UploadModelDir(localDir, "my fine-tuned/model", "lab-a100", false)
	require.NoError(t, err)

	assert.Equal(t, "lab-a100", result.ServerName)
	assert.Equal(t, "10.0.0.5", result.ServerIP)
	assert.Equal(t, "/data/models/my_fine-tuned_model", result.RemoteDir)
	assert.Equal(t, 3, result.Files)
	assert.Positive(t, result.Bytes)

	assert.Contains(t, client.remoteFiles, "/data/models/my_fine-tuned_model/config.json")
	assert.Contains(t, client.remoteFiles, "/data/models/my_fine-tuned_model/pytorch_model.bin")
	assert.Contains(t, client.remoteFiles, "/data/models/my_fine-tuned_model/checkpoint-500/optimizer.pt")

	require.Len(t, factory.serverCalls, 1)
	assert.Equal(t, "deploy", factory.serverCalls[0].User)
}

func TestTransferServiceUploadModelDirExistingRemote(t *testing.T) {
	client := &fakeRemoteFileClient{
		remoteDirs: map[string]bool{"/data/models/resnet": true},
	}
	svc := transferFixture(&fakeRemoteFileClientFactory{client: client})
	localDir := writeModelDir(t)

	_, err := svc.UploadModelDir(localDir, "resnet", "lab-a100", false)
	assert.ErrorIs(t, err, ErrRemoteModelAlreadyExists)

	// Overwrite skips the existence check.
	result, err := svc.UploadModelDir(localDir, "resnet", "lab-a100", true)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Files)
}

func TestTransferServiceUploadModelDirUnknownServer(t *testing.T) {
	svc := transferFixture(&fakeRemoteFileClientFactory{client: &fakeRemoteFileClient{}})

	_, err := svc.UploadModelDir(writeModelDir(t), "resnet", "lab-h100", false)
	assert.ErrorIs(t, err, ErrStorageServerNotFound)

	_, err = svc.UploadModelDir(writeModelDir(t), "resnet", "  ", false)
	assert.ErrorIs(t, err, ErrStorageServerNameRequired)
}

func TestTransferServiceUploadModelDirMissingLocal(t *testing.T) {
	svc := transferFixture(&fakeRemoteFileClientFactory{client: &fakeRemoteFileClient{}})

	_, err := svc.UploadModelDir(filepath.Join(t.TempDir(), "nope"), "resnet", "lab-a100", false)
	assert.ErrorIs(t, err, ErrLocalSourceDirNotFound)
}

func TestTransferServiceUploadModelDirUploadFailure(t *testing.T) {
	client := &fakeRemoteFileClient{uploadErr: errors.New("connection reset")}
	svc := transferFixture(&fakeRemoteFileClientFactory{client: client})

	_, err := svc.UploadModelDir(writeModelDir(t), "resnet", "lab-a100", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestNormalizeRemoteFilePath(t *testing.T) {
	normalized, err := normalizeRemoteFilePath(`\data\models\resnet`)
	require.NoError(t, err)
	assert.Equal(t, "/data/models/resnet", normalized)

	normalized, err = normalizeRemoteFilePath("data/models/../models/resnet")
	require.NoError(t, err)
	assert.Equal(t, "/data/models/resnet", normalized)

	_, err = normalizeRemoteFilePath("  ")
	assert.ErrorIs(t, err, ErrSSHFilePathRequired)

	_, err = normalizeRemoteFilePath("/")
	assert.ErrorIs(t, err, ErrSSHFilePathRequired)
}
