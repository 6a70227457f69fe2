package hashcash_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/hashcash"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestCountLeadingZeros(t *testing.T) {
	type table struct {
		name   string
		digest string
		exp    int
	}

	tt := []table{
		{name: "empty", digest: "", exp: 0},
		{name: "allzero", digest: strings.Repeat("0", 64), exp: 64},
		{name: "short", digest: "000", exp: 3},
		{name: "none", digest: "a000", exp: 0},
		{name: "middle", digest: "000f00", exp: 3},
	}

	t.Log("Given the need to count leading zeros in a digest.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				got := hashcash.CountLeadingZeros(tst.digest)
				if got != tst.exp {
					t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, got)
					t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, tst.exp)
					t.Fatalf("\t%s\tTest %d:\tShould get back the right count.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the right count.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func TestFindTokenKnownVector(t *testing.T) {
	t.Log("Given the need to agree with other implementations of the puzzle.")
	{
		digest, nonce, err := hashcash.FindToken(context.Background(), []byte("foo"), 2)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to find a token: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to find a token.", success)

		if nonce != 78 {
			t.Logf("\t%s\tgot: %d", failed, nonce)
			t.Logf("\t%s\texp: %d", failed, 78)
			t.Fatalf("\t%s\tShould find the first solving nonce.", failed)
		}
		t.Logf("\t%s\tShould find the first solving nonce.", success)

		sum := sha256.Sum256([]byte("foo78"))
		if digest != hex.EncodeToString(sum[:]) {
			t.Fatalf("\t%s\tShould return the digest of the content and nonce.", failed)
		}
		if !strings.HasPrefix(digest, "00") {
			t.Fatalf("\t%s\tShould return a digest with two leading zeros: %s", failed, digest)
		}
		t.Logf("\t%s\tShould return the digest of the content and nonce.", success)
	}
}

func TestRoundTrip(t *testing.T) {
	contents := []string{"", "foo", "genesis1", "0000000abc2"}

	t.Log("Given the need to verify every token that is found.")
	{
		for _, content := range contents {
			for difficulty := 0; difficulty <= 4; difficulty++ {
				digest, nonce, err := hashcash.FindToken(context.Background(), []byte(content), difficulty)
				if err != nil {
					t.Fatalf("\t%s\tcontent[%q] difficulty[%d]:\tShould be able to find a token: %s", failed, content, difficulty, err)
				}

				if nonce < 1 {
					t.Fatalf("\t%s\tcontent[%q] difficulty[%d]:\tShould start the search at nonce 1.", failed, content, difficulty)
				}

				if hashcash.CountLeadingZeros(digest) < difficulty {
					t.Fatalf("\t%s\tcontent[%q] difficulty[%d]:\tShould return a solved digest: %s", failed, content, difficulty, digest)
				}

				if !hashcash.Verify([]byte(content), nonce, difficulty) {
					t.Fatalf("\t%s\tcontent[%q] difficulty[%d]:\tShould verify the token.", failed, content, difficulty)
				}
			}
			t.Logf("\t%s\tcontent[%q]:\tShould verify the tokens for difficulty 0 through 4.", success, content)
		}
	}
}

func TestVerifyMutatedContent(t *testing.T) {
	content := []byte("node-7 mined this block")

	t.Log("Given the need to reject a token against different content.")
	{
		_, nonce, err := hashcash.FindToken(context.Background(), content, 4)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to find a token: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to find a token: nonce[%d]", success, nonce)

		mutated := make([]byte, len(content))
		copy(mutated, content)
		mutated[5] = '8'

		if hashcash.Verify(mutated, nonce, 4) {
			t.Fatalf("\t%s\tShould not verify the token against mutated content.", failed)
		}
		t.Logf("\t%s\tShould not verify the token against mutated content.", success)
	}
}

func TestFindTokenCancel(t *testing.T) {
	t.Log("Given the need to stop a search that can't finish.")
	{
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		// No sha256 hex digest has 64 leading zeros in any practical search.
		_, _, err := hashcash.FindToken(ctx, []byte("foo"), 64)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("\t%s\tShould return the context error, got: %v", failed, err)
		}
		t.Logf("\t%s\tShould return the context error.", success)
	}
}

func TestFindTokenMaxAttempts(t *testing.T) {
	t.Log("Given the need to cap the number of attempts.")
	{
		_, _, err := hashcash.FindToken(context.Background(), []byte("foo"), 64, hashcash.WithMaxAttempts(500))
		if !errors.Is(err, hashcash.ErrSearchExhausted) {
			t.Fatalf("\t%s\tShould return ErrSearchExhausted, got: %v", failed, err)
		}
		t.Logf("\t%s\tShould return ErrSearchExhausted.", success)

		_, nonce, err := hashcash.FindToken(context.Background(), []byte("foo"), 2, hashcash.WithMaxAttempts(78))
		if err != nil || nonce != 78 {
			t.Fatalf("\t%s\tShould find a solution on the last allowed attempt: nonce[%d] err[%v]", failed, nonce, err)
		}
		t.Logf("\t%s\tShould find a solution on the last allowed attempt.", success)
	}
}

func TestFindTokenInvalidDifficulty(t *testing.T) {
	t.Log("Given the need to reject difficulties a digest can't satisfy.")
	{
		for _, difficulty := range []int{-1, 65} {
			_, _, err := hashcash.FindToken(context.Background(), []byte("foo"), difficulty)
			if !errors.Is(err, hashcash.ErrInvalidDifficulty) {
				t.Fatalf("\t%s\tdifficulty[%d]:\tShould return ErrInvalidDifficulty, got: %v", failed, difficulty, err)
			}
			t.Logf("\t%s\tdifficulty[%d]:\tShould return ErrInvalidDifficulty.", success, difficulty)
		}
	}
}

func TestFindTokenEvents(t *testing.T) {
	t.Log("Given the need to report search progress.")
	{
		var events []string
		ev := func(v string, args ...any) {
			events = append(events, v)
		}

		if _, _, err := hashcash.FindToken(context.Background(), []byte("foo"), 1, hashcash.WithEvHandler(ev), hashcash.WithTargetHashRate(1000)); err != nil {
			t.Fatalf("\t%s\tShould be able to find a token: %s", failed, err)
		}

		if len(events) == 0 || !strings.Contains(events[len(events)-1], "SOLVED") {
			t.Fatalf("\t%s\tShould report the solution as an event: %v", failed, events)
		}
		t.Logf("\t%s\tShould report the solution as an event.", success)
	}
}

func TestFindTokenThrottle(t *testing.T) {
	t.Log("Given the need to hold the search to a target hash rate.")
	{
		// At 10 kH/s every thousand attempts take 100ms, so 5000 attempts
		// take about half a second.
		start := time.Now()
		_, _, err := hashcash.FindToken(context.Background(), []byte("foo"), 64, hashcash.WithMaxAttempts(5000), hashcash.WithTargetHashRate(10))
		took := time.Since(start)

		if !errors.Is(err, hashcash.ErrSearchExhausted) {
			t.Fatalf("\t%s\tShould exhaust the attempts, got: %v", failed, err)
		}
		t.Logf("\t%s\tShould exhaust the attempts.", success)

		if took < 400*time.Millisecond || took > 5*time.Second {
			t.Fatalf("\t%s\tShould take about 500ms, took %v.", failed, took)
		}
		t.Logf("\t%s\tShould take about 500ms, took %v.", success, took)

		// At this rate the first pause lasts far longer than the deadline.
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start = time.Now()
		_, _, err = hashcash.FindToken(ctx, []byte("foo"), 64, hashcash.WithTargetHashRate(0.001))
		took = time.Since(start)

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("\t%s\tShould return the context error while paused, got: %v", failed, err)
		}
		if took > 5*time.Second {
			t.Fatalf("\t%s\tShould stop pausing when the context ends, took %v.", failed, took)
		}
		t.Logf("\t%s\tShould return the context error while paused.", success)
	}
}
