package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/powerlab/wattlog/pkg/capture"
	"github.com/powerlab/wattlog/pkg/config"
	"github.com/powerlab/wattlog/pkg/probe"
	"github.com/powerlab/wattlog/pkg/types"
	"github.com/powerlab/wattlog/pkg/version"
)

func getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.Status())
}

type startRequest struct {
	WindowSeconds int `json:"windowSeconds"`
	MaxWindows    int `json:"maxWindows"`
}

func postStart(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
	}

	if req.WindowSeconds < 0 || req.MaxWindows < 0 {
		err := fmt.Errorf("windowSeconds and maxWindows must not be negative")
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	opts := captureOptions(conf)
	if req.WindowSeconds > 0 {
		opts.WindowDuration = time.Duration(req.WindowSeconds) * time.Second
	}
	opts.MaxWindows = req.MaxWindows

	if err := ctrl.Start(opts); err != nil {
		logrus.Errorf("start capture failed: %v", err)
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, capture.ErrAlreadyRunning), errors.Is(err, capture.ErrBusy):
			status = http.StatusConflict
		case errors.Is(err, probe.ErrNotFound):
			status = http.StatusBadRequest
		}
		c.IndentedJSON(status, err.Error())
		_ = c.AbortWithError(status, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, ctrl.Status())
}

func postStop(c *gin.Context) {
	if err := ctrl.Stop(); err != nil {
		logrus.Errorf("stop capture failed: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, capture.ErrNotRunning) || errors.Is(err, capture.ErrBusy) {
			status = http.StatusConflict
		}
		c.IndentedJSON(status, err.Error())
		_ = c.AbortWithError(status, err)
		return
	}

	c.IndentedJSON(http.StatusOK, ctrl.Status())
}

func postReseal(c *gin.Context) {
	metas, err := ctrl.Reseal()
	if err != nil {
		logrus.Errorf("reseal failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, metas)
}

func getSnapshot(c *gin.Context) {
	samples := ctrl.Snapshot()
	if samples == nil {
		samples = []types.Sample{}
	}
	c.IndentedJSON(http.StatusOK, samples)
}

func getWindows(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.Status().Windows)
}

// FileInfo describes one sealed CSV file in the log directory.
type FileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

func getFiles(c *gin.Context) {
	entries, err := os.ReadDir(conf.LogDir())
	if err != nil {
		if os.IsNotExist(err) {
			c.IndentedJSON(http.StatusOK, []FileInfo{})
			return
		}
		logrus.Errorf("listing log dir failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    filepath.Base(fi.Name()),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}

	// Newest first.
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	c.IndentedJSON(http.StatusOK, files)
}

func getDevices(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, probe.Scan())
}

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func setWindowSeconds(c *gin.Context) {
	var w int
	if err := c.BindJSON(&w); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if w < 1 {
		err := fmt.Errorf("window duration must be at least 1 second, got %d", w)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetWindowSeconds(w)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set window duration to %ds", w)

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("window duration set to %ds. It takes effect on the next capture session.", w))
}

// ScheduleInfo reports the configured capture schedule.
type ScheduleInfo struct {
	Cron    string    `json:"cron,omitempty"`
	NextRun time.Time `json:"nextRun"`
}

func getSchedule(c *gin.Context) {
	expr, next := sched.Next()
	c.IndentedJSON(http.StatusOK, ScheduleInfo{Cron: expr, NextRun: next})
}

func setSchedule(c *gin.Context) {
	var expr string
	if err := c.BindJSON(&expr); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := sched.Set(expr); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	_, next := sched.Next()
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("capture scheduled, next run at %s", next.Format(time.RFC3339)))
}

func deleteSchedule(c *gin.Context) {
	sched.Clear()
	c.IndentedJSON(http.StatusOK, "schedule cleared")
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
