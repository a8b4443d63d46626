package gitsync

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/packagewjx/spark-resource-advisor/pkg/core"
	"github.com/pkg/errors"
)

// Syncer 把建议序列化为JSON文件写入Git仓库并提交。推送失败只上报不中断流水线。
// 凭证由Git自身的credential helper管理，本程序不接触。
type Syncer struct {
	repoPath  string
	remoteUrl string
	logger    *log.Logger
}

// NewSyncer 构造Git同步器。repoPath为空时返回nil，调用方应跳过同步。
func NewSyncer(repoPath, remoteUrl string) *Syncer {
	if repoPath == "" {
		return nil
	}
	return &Syncer{
		repoPath:  repoPath,
		remoteUrl: remoteUrl,
		logger:    log.New(os.Stdout, "gitsync: ", log.LstdFlags|log.Lshortfile|log.Lmsgprefix),
	}
}

func (s *Syncer) runGit(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = s.repoPath
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// InitRepo 在仓库未初始化时执行git init，并按需设置远端
func (s *Syncer) InitRepo() error {
	if err := os.MkdirAll(s.repoPath, 0755); err != nil {
		return errors.Wrap(err, fmt.Sprintf("创建仓库目录%s出错", s.repoPath))
	}
	if _, err := os.Stat(filepath.Join(s.repoPath, ".git")); err == nil {
		return nil
	}

	s.logger.Printf("正在初始化Git仓库%s\n", s.repoPath)
	if output, err := s.runGit("init"); err != nil {
		return errors.Wrap(err, fmt.Sprintf("git init失败：%s", output))
	}
	if s.remoteUrl != "" {
		if output, err := s.runGit("remote", "add", "origin", s.remoteUrl); err != nil {
			return errors.Wrap(err, fmt.Sprintf("设置远端失败：%s", output))
		}
	}
	return nil
}

// WriteRecommendation 把一条建议写入recommendations/<集群>/<应用ID>.json并返回相对路径
func (s *Syncer) WriteRecommendation(rec *core.Recommendation) (string, error) {
	dir := filepath.Join(s.repoPath, "recommendations", rec.ClusterName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, fmt.Sprintf("创建目录%s出错", dir))
	}

	content, err := json.MarshalIndent(map[string]interface{}{
		"cluster_name":          rec.ClusterName,
		"app_id":                rec.AppId,
		"version":               rec.Version,
		"category":              rec.Category,
		"recommended_executors": rec.NumExecutors,
		"recommended_memory_mb": rec.ExecutorMemoryMB,
		"recommended_cores":     rec.ExecutorCores,
		"source":                rec.Source,
		"notes":                 rec.Notes,
	}, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "序列化建议出错")
	}

	file := filepath.Join(dir, rec.AppId+".json")
	if err := ioutil.WriteFile(file, content, 0644); err != nil {
		return "", errors.Wrap(err, fmt.Sprintf("写入文件%s出错", file))
	}

	rel, err := filepath.Rel(s.repoPath, file)
	if err != nil {
		return "", err
	}
	return rel, nil
}

// Commit 暂存并提交给定文件。没有变更时git commit返回非零，这里只记录不报错。
func (s *Syncer) Commit(files []string, message string) error {
	for _, f := range files {
		if output, err := s.runGit("add", f); err != nil {
			return errors.Wrap(err, fmt.Sprintf("git add %s失败：%s", f, output))
		}
	}

	if output, err := s.runGit("commit", "-m", message); err != nil {
		s.logger.Printf("git commit返回非零：%s\n", output)
	}
	return nil
}

// Push 推送到远端，未配置远端时直接跳过
func (s *Syncer) Push() error {
	if s.remoteUrl == "" {
		return nil
	}
	if output, err := s.runGit("push", "origin", "main"); err != nil {
		return errors.Wrap(err, fmt.Sprintf("git push失败：%s", output))
	}
	return nil
}
