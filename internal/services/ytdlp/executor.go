package ytdlp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// stderrTail bounds how much diagnostic output is kept for error messages.
const stderrTail = 20

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var (
		wg      sync.WaitGroup
		scanErr error
		once    sync.Once
		mu      sync.Mutex
		errTail []string
	)

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout, func(line string) {
		if onStdout != nil {
			onStdout(line)
		}
	})
	go scan(stderr, func(line string) {
		mu.Lock()
		defer mu.Unlock()
		errTail = append(errTail, line)
		if len(errTail) > stderrTail {
			errTail = errTail[len(errTail)-stderrTail:]
		}
	})

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("wait command: %w", ctxErr)
		}
		if detail := strings.TrimSpace(strings.Join(errTail, "\n")); detail != "" {
			return fmt.Errorf("wait command: %w: %s", err, detail)
		}
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
