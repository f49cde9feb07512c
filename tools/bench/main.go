package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// -------------------- 统计 --------------------

type APITestStats struct {
	TotalRequests      int
	SuccessfulRequests int
	FailedRequests     int
	TotalLatency       time.Duration
	MaxLatency         time.Duration
	MinLatency         time.Duration
	mu                 sync.Mutex
}

func (s *APITestStats) Add(success bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalRequests++
	if !success {
		s.FailedRequests++
		return
	}
	s.SuccessfulRequests++
	s.TotalLatency += latency
	if s.MinLatency == 0 || latency < s.MinLatency {
		s.MinLatency = latency
	}
	if latency > s.MaxLatency {
		s.MaxLatency = latency
	}
}

func (s *APITestStats) AverageLatency() time.Duration {
	if s.SuccessfulRequests == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.SuccessfulRequests)
}

// -------------------- HTTP 客户端 --------------------

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type session struct {
	ID    uint
	Token string
	CSRF  string
}

var httpClient = &http.Client{Timeout: 8 * time.Second}

func call(base, method, path string, sess *session, body interface{}) (int, *envelope, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, err
		}
	}
	req, err := http.NewRequest(method, base+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if sess != nil {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
		req.Header.Set("X-CSRF-Token", sess.CSRF)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, &env, nil
}

func signup(base string) (*session, error) {
	username := gofakeit.Username() + gofakeit.DigitN(6)
	if len(username) > 30 {
		username = username[len(username)-30:]
	}
	code, env, err := call(base, http.MethodPost, "/api/v1/signup", nil, map[string]string{
		"username": username,
		"email":    username + "@bench.test",
		"password": gofakeit.Password(true, true, true, false, false, 12),
	})
	if err != nil {
		return nil, err
	}
	if code != http.StatusCreated {
		return nil, fmt.Errorf("signup failed: %d %s", code, env.Message)
	}

	var data struct {
		User struct {
			ID uint `json:"id"`
		} `json:"user"`
		SessionToken string `json:"session_token"`
		CSRFToken    string `json:"csrf_token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, err
	}
	return &session{ID: data.User.ID, Token: data.SessionToken, CSRF: data.CSRFToken}, nil
}

func postMessage(base string, owner *session) (uint, error) {
	code, env, err := call(base, http.MethodPost, "/api/v1/messages", owner, map[string]string{
		"text": gofakeit.Sentence(8),
	})
	if err != nil {
		return 0, err
	}
	if code != http.StatusCreated {
		return 0, fmt.Errorf("create message failed: %d %s", code, env.Message)
	}
	var data struct {
		ID uint `json:"id"`
	}
	err = json.Unmarshal(env.Data, &data)
	return data.ID, err
}

func likeCount(base string, messageID uint) (int64, error) {
	code, env, err := call(base, http.MethodGet, fmt.Sprintf("/api/v1/messages/%d", messageID), nil, nil)
	if err != nil {
		return 0, err
	}
	if code != http.StatusOK {
		return 0, fmt.Errorf("get message failed: %d %s", code, env.Message)
	}
	var data struct {
		LikeCount int64 `json:"like_count"`
	}
	err = json.Unmarshal(env.Data, &data)
	return data.LikeCount, err
}

// -------------------- 点赞竞争压测 --------------------

// runLikeRace 每个用户并发对同一消息重复点赞，最终点赞数必须等于用户数
func runLikeRace(base string, users, repeats int) error {
	fmt.Println("\n=== 点赞并发测试开始 ===")
	fmt.Printf("目标: %s 用户: %d 每用户重复点赞: %d\n", base, users, repeats)

	owner, err := signup(base)
	if err != nil {
		return err
	}
	messageID, err := postMessage(base, owner)
	if err != nil {
		return err
	}

	likers := make([]*session, 0, users)
	for i := 0; i < users; i++ {
		s, err := signup(base)
		if err != nil {
			return err
		}
		likers = append(likers, s)
	}

	stats := &APITestStats{}
	var wg sync.WaitGroup
	start := time.Now()
	path := fmt.Sprintf("/api/v1/messages/%d/like", messageID)

	for _, liker := range likers {
		for j := 0; j < repeats; j++ {
			wg.Add(1)
			go func(s *session) {
				defer wg.Done()
				t0 := time.Now()
				code, _, err := call(base, http.MethodPost, path, s, nil)
				stats.Add(err == nil && code == http.StatusOK, time.Since(t0))
			}(liker)
		}
	}

	// 所有者自赞必须被拒绝
	if code, _, err := call(base, http.MethodPost, path, owner, nil); err == nil && code != http.StatusUnauthorized {
		return fmt.Errorf("self-like returned %d, want 401", code)
	}

	wg.Wait()
	took := time.Since(start)

	fmt.Println("\n=== 点赞并发测试结果 ===")
	fmt.Printf("耗时: %v\n", took)
	fmt.Printf("总请求: %d 成功: %d 失败: %d\n", stats.TotalRequests, stats.SuccessfulRequests, stats.FailedRequests)
	fmt.Printf("延迟 平均: %v 最大: %v 最小: %v\n", stats.AverageLatency(), stats.MaxLatency, stats.MinLatency)
	if took > 0 {
		fmt.Printf("QPS: %.2f\n", float64(stats.SuccessfulRequests)/took.Seconds())
	}

	count, err := likeCount(base, messageID)
	if err != nil {
		return err
	}
	fmt.Printf("点赞数: %d 期望: %d\n", count, users)
	if count != int64(users) {
		return errors.New("like uniqueness violated")
	}
	return nil
}

// -------------------- 入口 --------------------

func main() {
	base := flag.String("base", "http://localhost:8080", "服务地址")
	users := flag.Int("users", 20, "点赞用户数")
	repeats := flag.Int("repeats", 5, "每个用户重复点赞次数")
	flag.Parse()

	fmt.Println("=== Warbler 点赞并发测试 ===")
	fmt.Printf("开始时间: %s\n", time.Now().Format("2006-01-02 15:04:05"))

	if err := runLikeRace(*base, *users, *repeats); err != nil {
		fmt.Println("测试失败:", err)
		os.Exit(1)
	}
	fmt.Println("\n=== 测试完成 ===")
}
