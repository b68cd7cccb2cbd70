package refactor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/phpref/internal/core"
	"github.com/standardbeagle/phpref/internal/index"
	"github.com/standardbeagle/phpref/internal/phptree"
	"github.com/standardbeagle/phpref/internal/types"
)

type renameFixture struct {
	files   *core.FileService
	idx     *index.Index
	renamer *Renamer
}

func newRenameFixture(t *testing.T, sources map[string]string) *renameFixture {
	t.Helper()
	files := core.NewFileService()
	parser := phptree.NewParser()
	idx := index.NewIndex(parser)
	for path, source := range sources {
		files.SetContent(path, []byte(source))
		require.NoError(t, idx.ScanFile(path, []byte(source)))
	}
	return &renameFixture{
		files:   files,
		idx:     idx,
		renamer: NewRenamer(files, idx, parser),
	}
}

// cursorAt returns the position of the first occurrence of needle in the
// file, pointing at its first character.
func cursorAt(t *testing.T, source, needle string) types.Position {
	t.Helper()
	for i, line := range strings.Split(source, "\n") {
		if col := strings.Index(line, needle); col >= 0 {
			return types.Position{Line: i + 1, Column: col}
		}
	}
	t.Fatalf("needle %q not found", needle)
	return types.Position{}
}

func (f *renameFixture) apply(t *testing.T, path string, edits []types.EditOperation) string {
	t.Helper()
	content, ok := f.files.GetContent(path)
	require.True(t, ok)
	out, err := ApplyToContent(content, GroupByFile(edits)[path])
	require.NoError(t, err)
	return string(out)
}

const userControllerSource = `<?php

namespace App\Http;

class UserController
{
    public function handle(): void
    {
    }

    public function run(): void
    {
        $this->handle();
    }
}
`

const orderControllerSource = `<?php

namespace App\Http;

class OrderController
{
    public function handle(): void
    {
    }

    public function run(): void
    {
        $this->handle();
    }
}
`

const callerSource = `<?php

namespace App;

use App\Http\UserController;
use App\Http\OrderController;

class Kernel
{
    public function dispatch(UserController $u, OrderController $o): void
    {
        $u->handle();
        $o->handle();
        (new UserController())->handle();
        UserController::handle();
    }
}
`

func TestRenameClassIsolation(t *testing.T) {
	f := newRenameFixture(t, map[string]string{
		"/p/UserController.php":  userControllerSource,
		"/p/OrderController.php": orderControllerSource,
		"/p/Kernel.php":          callerSource,
	})

	cursor := cursorAt(t, userControllerSource, "handle")
	edits, err := f.renamer.PlanRename("/p/UserController.php", cursor, "process")
	require.NoError(t, err)

	grouped := GroupByFile(edits)
	assert.NotContains(t, grouped, "/p/OrderController.php",
		"OrderController::handle must stay untouched")

	user := f.apply(t, "/p/UserController.php", edits)
	assert.NotContains(t, user, "handle")
	assert.Contains(t, user, "public function process(): void")
	assert.Contains(t, user, "$this->process();")

	kernel := f.apply(t, "/p/Kernel.php", edits)
	assert.Contains(t, kernel, "$u->process();")
	assert.Contains(t, kernel, "$o->handle();", "OrderController call site keeps its name")
	assert.Contains(t, kernel, "(new UserController())->process();")
	assert.Contains(t, kernel, "UserController::process();")
}

func TestRenameFromCallSiteCursor(t *testing.T) {
	f := newRenameFixture(t, map[string]string{
		"/p/UserController.php":  userControllerSource,
		"/p/OrderController.php": orderControllerSource,
	})

	cursor := cursorAt(t, userControllerSource, "$this->handle")
	cursor.Column += len("$this->")
	edits, err := f.renamer.PlanRename("/p/UserController.php", cursor, "process")
	require.NoError(t, err)

	user := f.apply(t, "/p/UserController.php", edits)
	assert.NotContains(t, user, "handle")
}

func TestRenameRejectsInvalidName(t *testing.T) {
	f := newRenameFixture(t, map[string]string{
		"/p/UserController.php": userControllerSource,
	})
	cursor := cursorAt(t, userControllerSource, "handle")

	for _, bad := range []string{"", "   ", "9lives", "with space"} {
		_, err := f.renamer.PlanRename("/p/UserController.php", cursor, bad)
		assert.Error(t, err, "name %q", bad)
	}
}

func TestRenameOutsideClassRefused(t *testing.T) {
	source := "<?php\n\nfunction helper(): void\n{\n}\n"
	f := newRenameFixture(t, map[string]string{"/p/helpers.php": source})

	_, err := f.renamer.PlanRename("/p/helpers.php", types.Position{Line: 3, Column: 9}, "other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no enclosing class")
}

func TestRenameSameNameIsNoOp(t *testing.T) {
	f := newRenameFixture(t, map[string]string{
		"/p/UserController.php": userControllerSource,
	})
	cursor := cursorAt(t, userControllerSource, "handle")

	edits, err := f.renamer.PlanRename("/p/UserController.php", cursor, "handle")
	require.NoError(t, err)
	assert.Empty(t, edits)
}

const loggerInterfaceSource = `<?php

namespace App\Log;

interface LoggerInterface
{
    public function log(string $message): void;
}
`

const fileLoggerSource = `<?php

namespace App\Log;

class FileLogger implements LoggerInterface
{
    public function log(string $message): void
    {
    }
}
`

const databaseLoggerSource = `<?php

namespace App\Log;

class DatabaseLogger implements LoggerInterface
{
    public function log(string $message): void
    {
    }
}
`

const loggerClientSource = `<?php

namespace App;

use App\Log\LoggerInterface;

class Service
{
    public function run(LoggerInterface $logger): void
    {
        $logger->log('starting');
    }
}
`

func TestRenameInterfaceFansOutToImplementors(t *testing.T) {
	f := newRenameFixture(t, map[string]string{
		"/p/LoggerInterface.php": loggerInterfaceSource,
		"/p/FileLogger.php":      fileLoggerSource,
		"/p/DatabaseLogger.php":  databaseLoggerSource,
		"/p/Service.php":         loggerClientSource,
	})

	cursor := cursorAt(t, loggerInterfaceSource, "log(")
	edits, err := f.renamer.PlanRename("/p/LoggerInterface.php", cursor, "write")
	require.NoError(t, err)

	assert.Contains(t, f.apply(t, "/p/LoggerInterface.php", edits), "public function write(string $message): void;")
	assert.Contains(t, f.apply(t, "/p/FileLogger.php", edits), "public function write(string $message): void")
	assert.Contains(t, f.apply(t, "/p/DatabaseLogger.php", edits), "public function write(string $message): void")
	assert.Contains(t, f.apply(t, "/p/Service.php", edits), "$logger->write('starting');")
}
