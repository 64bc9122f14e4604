package azure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"keeptrack/internal/core"
	"keeptrack/internal/remote"
)

var _ remote.Store = (*Store)(nil)

// Well-known Azurite development storage account.
const (
	devstoreAccount = "devstoreaccount1"
	devstoreKey     = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// Options selects the table and how to authenticate against it.
type Options struct {
	ServiceURL string
	Table      string
	Account    string
	Key        string
}

// Store keeps one entity per transaction, partitioned by owner.
type Store struct {
	client *aztables.Client
}

// New connects to the table service and makes sure the table exists.
// Shared key auth is used when an account key is given or the service URL is
// a plain http Azurite endpoint; otherwise the default Azure credential chain.
func New(ctx context.Context, opts Options) (*Store, error) {
	svc, err := newServiceClient(opts)
	if err != nil {
		return nil, err
	}
	if _, err := svc.CreateTable(ctx, opts.Table, nil); err != nil {
		var azErr *azcore.ResponseError
		if !errors.As(err, &azErr) || azErr.ErrorCode != "TableAlreadyExists" {
			return nil, fmt.Errorf("create table %s: %w", opts.Table, err)
		}
	}
	return &Store{client: svc.NewClient(opts.Table)}, nil
}

func newServiceClient(opts Options) (*aztables.ServiceClient, error) {
	account, key := opts.Account, opts.Key
	if account == "" && strings.HasPrefix(opts.ServiceURL, "http://") {
		account, key = devstoreAccount, devstoreKey
	}
	if account != "" {
		cred, err := aztables.NewSharedKeyCredential(account, key)
		if err != nil {
			return nil, fmt.Errorf("create shared key credential: %w", err)
		}
		return aztables.NewServiceClientWithSharedKey(opts.ServiceURL, cred, nil)
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create default azure credential: %w", err)
	}
	return aztables.NewServiceClient(opts.ServiceURL, cred, nil)
}

func (s *Store) ListByOwner(ctx context.Context, owner string) ([]core.Transaction, error) {
	filter := ownerFilter(owner)
	pager := s.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{
		Filter: &filter,
	})

	var out []core.Transaction
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list entities: %w", err)
		}
		for _, raw := range resp.Entities {
			tx, err := fromEntity(raw)
			if err != nil {
				continue
			}
			out = append(out, tx)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *Store) Insert(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	body, err := toEntity(tx)
	if err != nil {
		return err
	}
	if _, err := s.client.AddEntity(ctx, body, nil); err != nil {
		var azErr *azcore.ResponseError
		if errors.As(err, &azErr) && azErr.ErrorCode == "EntityAlreadyExists" {
			return nil
		}
		return fmt.Errorf("add entity %s: %w", tx.ID, err)
	}
	return nil
}
