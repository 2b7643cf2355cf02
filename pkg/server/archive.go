package server

import (
	"fmt"
	"log"

	"github.com/crystal-station/gostation/pkg/archive"
	"github.com/crystal-station/gostation/pkg/console"
)

// Archive writes a data archive to Conf.ArchiveDir and prunes old ones.
// It does not need Mu. Callers that overlap a running archive share its
// result instead of writing a second one.
func (g *Game) Archive() (string, error) {
	v, err, shared := g.archiveGroup.Do("archive", func() (any, error) {
		return g.archive()
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.Printf("[archive] joined an archive already in progress")
	}
	return v.(string), nil
}

func (g *Game) archive() (string, error) {
	if g.Conf.ArchiveDir == "" {
		return "", fmt.Errorf("server: archive_dir is not set")
	}
	p := archive.Params{
		Dir:          g.Conf.ArchiveDir,
		Name:         g.Conf.ServerName,
		PrototypeDir: g.Conf.PrototypeDir,
		LocaleFile:   g.Conf.LocaleFile,
		ConfPath:     g.Conf.Path,
		Sandbox:      g.Sandbox.Enabled(),
	}
	if g.Store != nil {
		p.AccountsSnapshot = g.Store.Backup
		if accs, err := g.Store.ListAccounts(); err == nil {
			p.Accounts = len(accs)
		}
	}
	if g.AdminLog != nil {
		p.AdminLogPath = g.AdminLog.Path()
		p.AdminLogFlush = g.AdminLog.Checkpoint
	}

	path, err := archive.Create(p)
	if err != nil {
		return "", err
	}
	g.Metrics.archivesTotal.Inc()
	if n, err := archive.Prune(g.Conf.ArchiveDir, g.Conf.ArchiveKeep); err != nil {
		log.Printf("[archive] prune: %v", err)
	} else if n > 0 {
		log.Printf("[archive] pruned %d old archives", n)
	}
	return path, nil
}

func (g *Game) cmdArchive(sh *console.Shell, args []string) {
	if len(args) > 0 && args[0] == "list" {
		list, err := archive.List(g.Conf.ArchiveDir)
		if err != nil {
			sh.WriteError(err.Error())
			return
		}
		for _, ai := range list {
			sh.WriteLine(fmt.Sprintf("%-36s %8d bytes  %d accounts", ai.Filename, ai.Size, ai.Accounts))
		}
		sh.WriteLine(fmt.Sprintf("%d archives.", len(list)))
		return
	}
	if len(args) > 0 {
		sh.Usage()
		return
	}
	path, err := g.Archive()
	if err != nil {
		sh.WriteError(err.Error())
		return
	}
	sh.WriteLine("Wrote " + path + ".")
}
