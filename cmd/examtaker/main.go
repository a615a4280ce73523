// Command examtaker lets a student sit a timed exam from a terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/edusphere-api/internal/examclient"
	"github.com/edusphere-api/internal/examtimer"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", envOr("EDUSPHERE_API_URL", "http://localhost:3000"), "API base URL")
	email := flag.String("email", os.Getenv("EDUSPHERE_EMAIL"), "student email")
	examID := flag.String("exam", "", "exam id")
	statePath := flag.String("state", defaultStatePath(), "file that keeps exam start times across restarts")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if *email == "" || *examID == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *apiURL, *email, *examID, *statePath); err != nil && !errors.Is(err, errTimeUp) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, apiURL, email, examID, statePath string) error {
	lines := readLines(os.Stdin)
	client := examclient.New(apiURL)

	password, err := prompt(ctx, lines, "Contraseña: ")
	if err != nil {
		return err
	}
	challenge, err := client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Println(challenge.Message)
	code, err := prompt(ctx, lines, "Código de verificación: ")
	if err != nil {
		return err
	}
	if _, err := client.VerifyOTP(ctx, email, code); err != nil {
		return err
	}

	exam, err := client.GetExam(ctx, examID)
	if err != nil {
		return err
	}
	storage, err := examtimer.NewFileStorage(statePath)
	if err != nil {
		return err
	}

	expired := make(chan error, 1)
	timer, err := examtimer.New(examtimer.Config{
		ExamID:    exam.ExamID,
		Duration:  time.Duration(exam.DurationMinutes) * time.Minute,
		Storage:   storage,
		Submitter: client,
		OnTick:    announce(),
		OnExpired: func(err error) { expired <- err },
	})
	if err != nil {
		return err
	}
	if err := timer.Start(ctx); err != nil {
		return err
	}
	defer timer.Stop()

	fmt.Printf("\n%s (%d min). Tiempo restante %s\n", exam.Title, exam.DurationMinutes, clock(timer.Remaining(time.Now())))

	for i, q := range exam.Questions {
		fmt.Printf("\n%d. %s\n", i+1, q.Question)
		for j, opt := range q.Options {
			fmt.Printf("   %d) %s\n", j+1, opt)
		}
		for {
			line, err := wait(ctx, expired, lines, "Respuesta (vacío para omitir): ")
			if err != nil {
				return err
			}
			if line == "" {
				break
			}
			n, convErr := strconv.Atoi(line)
			if convErr != nil || n < 1 || n > len(q.Options) {
				fmt.Println("Opción no válida.")
				continue
			}
			if err := timer.Answer(i, n-1); err != nil {
				if errors.Is(err, examtimer.ErrNotRunning) {
					return reportExpiry(<-expired)
				}
				slog.Warn("answer not saved to disk", "err", err)
				fmt.Println("Aviso: la respuesta no se pudo guardar en disco; se enviará si no cierras el programa.")
			}
			break
		}
	}

	for {
		line, err := wait(ctx, expired, lines, "\n¿Entregar el examen? (s/n): ")
		if err != nil {
			return err
		}
		if strings.EqualFold(line, "s") {
			break
		}
	}
	if err := timer.Submit(ctx); err != nil {
		if errors.Is(err, examtimer.ErrSubmissionUnconfirmed) {
			fmt.Println("No se pudo confirmar la entrega. Vuelve a ejecutar el comando para reintentar.")
		}
		return err
	}
	fmt.Println("Examen entregado exitosamente. Esperando calificación.")
	return nil
}

// errTimeUp ends the session after a confirmed automatic submission.
var errTimeUp = errors.New("time is up")

// wait prompts and returns the next line, or stops early when the exam ends.
func wait(ctx context.Context, expired <-chan error, lines <-chan string, msg string) (string, error) {
	fmt.Print(msg)
	select {
	case <-ctx.Done():
		fmt.Println("\nInterrumpido. El tiempo sigue corriendo; vuelve a ejecutar el comando para continuar.")
		return "", ctx.Err()
	case err := <-expired:
		return "", reportExpiry(err)
	case line, ok := <-lines:
		if !ok {
			return "", io.ErrUnexpectedEOF
		}
		return line, nil
	}
}

func reportExpiry(err error) error {
	fmt.Println("\nSe acabó el tiempo.")
	if err != nil {
		fmt.Println("No se pudo confirmar la entrega automática. Vuelve a ejecutar el comando para reintentar.")
		return err
	}
	fmt.Println("Tus respuestas se entregaron automáticamente.")
	return errTimeUp
}

func prompt(ctx context.Context, lines <-chan string, msg string) (string, error) {
	fmt.Print(msg)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-lines:
		if !ok {
			return "", io.ErrUnexpectedEOF
		}
		return line, nil
	}
}

func readLines(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			out <- strings.TrimSpace(sc.Text())
		}
	}()
	return out
}

// announce prints the countdown once a minute and every second near the end.
func announce() func(time.Duration) {
	last := time.Duration(-1)
	return func(left time.Duration) {
		if left == last {
			return
		}
		last = left
		if left > 0 && (left <= 10*time.Second || left%time.Minute == 0) {
			fmt.Printf("\n[Tiempo restante %s]\n", clock(left))
		}
	}
}

func clock(d time.Duration) string {
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "edusphere", "exam_timers.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
