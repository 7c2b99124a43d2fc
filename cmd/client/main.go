package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/Dan9191/infotelecom-auth/internal/client"
	"github.com/Dan9191/infotelecom-auth/internal/config"
	"github.com/Dan9191/infotelecom-auth/internal/localstore"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const usage = `usage: client <command> [flags]

commands:
  register -name N -email E -phone P -password X -confirm X -agree
  login    -email E -password X
  logout
  whoami
  guard    -page account.html
  phone    -value 89991234567`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)

	cfg, err := config.NewClientConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	var kv localstore.KV
	switch cfg.StorageBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		kv = localstore.NewRedisKV(rdb, cfg.StorageOrigin)
	default:
		kv = localstore.NewFileKV(cfg.StoragePath, cfg.StorageOrigin)
	}

	ctx := context.Background()
	api := client.NewAPI(cfg.APIBaseURL, cfg.APITimeout, logger)
	ctrl, err := client.NewController(ctx, api, localstore.NewStorage(kv), logger)
	if err != nil {
		logger.Fatalf("Failed to open local storage: %v", err)
	}

	if err := run(ctx, ctrl, os.Args[1], os.Args[2:]); err != nil {
		logger.Fatal(err)
	}
}

func run(ctx context.Context, ctrl *client.Controller, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)

	switch cmd {
	case "register":
		var form client.RegisterForm
		fs.StringVar(&form.Name, "name", "", "full name")
		fs.StringVar(&form.Email, "email", "", "email")
		fs.StringVar(&form.Phone, "phone", "", "phone number")
		fs.StringVar(&form.Password, "password", "", "password")
		fs.StringVar(&form.PasswordConfirm, "confirm", "", "password confirmation")
		fs.BoolVar(&form.Agree, "agree", false, "accept the terms of use")
		_ = fs.Parse(args)
		form.Phone = ctrl.PhoneInput(form.Phone)
		res, err := ctrl.Register(ctx, form)
		if err != nil {
			return err
		}
		return printResult(res)

	case "login":
		var form client.LoginForm
		fs.StringVar(&form.Email, "email", "", "email")
		fs.StringVar(&form.Password, "password", "", "password")
		_ = fs.Parse(args)
		res, err := ctrl.Login(ctx, form)
		if err != nil {
			return err
		}
		return printResult(res)

	case "logout":
		res, err := ctrl.Logout(ctx)
		if err != nil {
			return err
		}
		return printResult(res)

	case "whoami":
		user, err := ctrl.CurrentUser(ctx)
		if err != nil {
			return err
		}
		return printJSON(user)

	case "guard":
		page := fs.String("page", client.PageAccount, "page being opened")
		_ = fs.Parse(args)
		redirect, err := ctrl.Guard(ctx, *page)
		if err != nil {
			return err
		}
		if redirect == "" {
			redirect = *page
		}
		fmt.Println(redirect)
		return nil

	case "phone":
		value := fs.String("value", "", "raw phone input")
		_ = fs.Parse(args)
		fmt.Println(ctrl.PhoneInput(*value))
		return nil
	}

	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

func printResult(res client.Result) error {
	if res.Error != "" {
		fmt.Fprintln(os.Stderr, res.Error)
		os.Exit(1)
	}
	return printJSON(res)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
