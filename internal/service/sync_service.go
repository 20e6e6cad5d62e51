//go:generate mockery --name SyncService --output ./mocks --outpkg mocks --case=underscore
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go_vocab_sync/internal/config"
	"go_vocab_sync/internal/crypto"
	"go_vocab_sync/internal/localstore"
	"go_vocab_sync/internal/middleware"
	"go_vocab_sync/internal/model"
	"go_vocab_sync/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IdentityProvider は外部のアイデンティティ/セッション基盤への窓口です。
// 認証済みユーザーがいない場合は (nil, nil) を返します。
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (*model.User, error)
}

// SyncService はレプリケーションエンジンの公開インターフェースです。
// SyncAll はエラーを返さず、常に一様な SyncResult を返します。
type SyncService interface {
	SyncAll(ctx context.Context) *model.SyncResult
	Status() model.SyncStatus
	SetOnline(online bool)
	RecordPendingChange(ctx context.Context, kind model.PendingChangeKind, action model.PendingChangeAction, id uuid.UUID) error
}

type syncService struct {
	db         *gorm.DB // リモートレプリカ。nil なら未設定
	local      localstore.Store
	cardRepo   repository.CardRepository
	reviewRepo repository.ReviewRepository
	logRepo    repository.SyncLogRepository
	cipher     crypto.Cipher
	identity   IdentityProvider
	now        func() time.Time

	conflictWindow time.Duration

	// syncMu は同期パス全体の single-flight ガード。
	// 同時呼び出しはウォーターマークと台帳を壊すため直列化ではなく拒否する。
	syncMu sync.Mutex

	// stateMu は以下の状態スナップショットを保護する
	stateMu    sync.Mutex
	state      model.SyncState
	online     bool
	lastSynced *time.Time
	lastError  string
}

func NewSyncService(
	db *gorm.DB,
	local localstore.Store,
	cardRepo repository.CardRepository,
	reviewRepo repository.ReviewRepository,
	logRepo repository.SyncLogRepository,
	cipher crypto.Cipher,
	identity IdentityProvider,
	cfg *config.Config,
) SyncService {
	window := defaultConflictWindow
	if cfg != nil && cfg.Sync.ConflictWindowMs > 0 {
		window = time.Duration(cfg.Sync.ConflictWindowMs) * time.Millisecond
	}
	return &syncService{
		db:             db,
		local:          local,
		cardRepo:       cardRepo,
		reviewRepo:     reviewRepo,
		logRepo:        logRepo,
		cipher:         cipher,
		identity:       identity,
		now:            time.Now,
		conflictWindow: window,
		state:          model.SyncStateIdle,
		online:         true,
	}
}

// Status は状態インジケータ向けのスナップショットを返します
func (s *syncService) Status() model.SyncStatus {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	state := s.state
	if !s.online {
		state = model.SyncStateOffline
	}
	return model.SyncStatus{
		State:      state,
		Online:     s.online,
		LastSynced: s.lastSynced,
		LastError:  s.lastError,
	}
}

// SetOnline は接続イベントから呼ばれます。オフラインは syncing への遷移を先取りして防ぎます
func (s *syncService) SetOnline(online bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.online = online
}

func (s *syncService) setState(state model.SyncState, lastError string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
	s.lastError = lastError
}

// RecordPendingChange はオフライン変更台帳への追記です（作成・復習フローから呼ばれる）。
// 現行設計では台帳は書き込み専用で、同期成功時にクリアされるだけです。
// リプレイ意味論は意図的に実装していない。
func (s *syncService) RecordPendingChange(ctx context.Context, kind model.PendingChangeKind, action model.PendingChangeAction, id uuid.UUID) error {
	return s.local.AppendPendingChange(ctx, model.PendingChange{
		Kind:      kind,
		Action:    action,
		ID:        id,
		Timestamp: s.now(),
	})
}

func failure(msg string) *model.SyncResult {
	return &model.SyncResult{Success: false, Message: msg}
}

// SyncAll は同期1パスを実行します。
// ガード → ブートストラップ/増分の選択 → 監査ログ追記 → ウォーターマーク前進 →
// 台帳クリア。途中のエラーはパス全体を中断し、ウォーターマークは一切進めません。
// 次回呼び出しは同じウィンドウを再処理しますが、手順はすべてIDキーの
// アップサートなので冪等です。
func (s *syncService) SyncAll(ctx context.Context) *model.SyncResult {
	logger := middleware.GetLogger(ctx)

	if !s.syncMu.TryLock() {
		logger.Warn("Sync requested while another sync is in flight")
		return failure(model.ErrSyncInProgress.Error())
	}
	defer s.syncMu.Unlock()

	if s.db == nil {
		return failure(model.ErrNotConfigured.Error())
	}

	user, err := s.identity.CurrentUser(ctx)
	if err != nil || user == nil {
		return failure(model.ErrUnauthenticated.Error())
	}

	s.stateMu.Lock()
	online := s.online
	s.stateMu.Unlock()
	if !online {
		logger.Info("Sync skipped: device offline")
		return failure(model.ErrOffline.Error())
	}

	s.setState(model.SyncStateSyncing, "")
	logger = logger.With("owner", user.ID.String())

	key, err := s.loadKey(ctx, user.ID)
	if err != nil {
		logger.Error("Failed to load encryption key", "error", err)
		s.setState(model.SyncStateError, err.Error())
		return failure("encryption key unavailable: " + err.Error())
	}

	watermark, err := s.local.LastSyncedAt(ctx)
	if err != nil {
		logger.Error("Failed to read sync watermark", "error", err)
		s.setState(model.SyncStateError, err.Error())
		return failure("watermark unavailable: " + err.Error())
	}

	var (
		result *model.SyncResult
		action model.SyncAction
	)
	if watermark == nil {
		logger.Info("No watermark found, running bootstrap sync")
		result, action, err = s.bootstrap(ctx, user.ID, key)
	} else {
		logger.Info("Running incremental sync", "since", *watermark)
		result, action, err = s.incrementalSync(ctx, user.ID, key, *watermark)
	}
	if err != nil {
		logger.Error("Sync pass aborted", "error", err)
		s.setState(model.SyncStateError, err.Error())
		return failure(err.Error())
	}

	// 監査ログは成功パスごとに1行。件数はそのパスのアップロードとダウンロードの合計
	entry := &model.SyncLog{
		Owner:           user.ID,
		Action:          action,
		CardsAffected:   result.CardsUploaded + result.CardsDownloaded,
		ReviewsAffected: result.ReviewsUploaded + result.ReviewsDownloaded,
	}
	if err := s.logRepo.Append(ctx, s.db, entry); err != nil {
		s.setState(model.SyncStateError, err.Error())
		return failure(err.Error())
	}

	// ウォーターマークは成功時のみ前進（完了時刻）。部分的な前進はしない
	completed := s.now()
	if err := s.local.SetLastSyncedAt(ctx, completed); err != nil {
		s.setState(model.SyncStateError, err.Error())
		return failure(err.Error())
	}
	if err := s.local.ClearPendingChanges(ctx); err != nil {
		s.setState(model.SyncStateError, err.Error())
		return failure(err.Error())
	}

	s.stateMu.Lock()
	s.state = model.SyncStateSuccess
	s.lastError = ""
	s.lastSynced = &completed
	s.stateMu.Unlock()

	result.Success = true
	logger.Info("Sync pass completed",
		"action", string(action),
		"cards_uploaded", result.CardsUploaded,
		"cards_downloaded", result.CardsDownloaded,
		"reviews_uploaded", result.ReviewsUploaded,
		"reviews_downloaded", result.ReviewsDownloaded,
		"conflicts", len(result.Conflicts),
	)
	return result
}

// loadKey はキャッシュ済みの書き出し鍵を読み戻し、無ければ導出してキャッシュします
func (s *syncService) loadKey(ctx context.Context, owner uuid.UUID) ([]byte, error) {
	cached, err := s.local.CachedKey(ctx)
	if err != nil {
		return nil, err
	}
	if cached != "" {
		if key, err := s.cipher.ImportKey(cached); err == nil {
			return key, nil
		}
		// 壊れたキャッシュは導出し直して上書きする
	}
	key, err := s.cipher.DeriveKey(owner.String())
	if err != nil {
		return nil, err
	}
	if err := s.local.SetCachedKey(ctx, s.cipher.ExportKey(key)); err != nil {
		return nil, err
	}
	return key, nil
}

// bootstrap はウォーターマークが存在しない初回接触時の戦略選択です。
// どちらのレプリカがデータを持つかで upload-only / download-only /
// merge-bootstrap / no-op に分岐します。
func (s *syncService) bootstrap(ctx context.Context, owner uuid.UUID, key []byte) (*model.SyncResult, model.SyncAction, error) {
	localCount, err := s.local.CountCards(ctx)
	if err != nil {
		return nil, "", err
	}
	remoteCount, err := s.cardRepo.CountByOwner(ctx, s.db, owner)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}

	switch {
	case localCount > 0 && remoteCount == 0:
		result, err := s.uploadAll(ctx, owner, key)
		return result, model.SyncActionUpload, err
	case localCount == 0 && remoteCount > 0:
		result, err := s.downloadAll(ctx, owner, key)
		return result, model.SyncActionDownload, err
	case localCount > 0 && remoteCount > 0:
		result, err := s.mergeBootstrap(ctx, owner, key)
		return result, model.SyncActionMerge, err
	default:
		// 両側とも空。ウォーターマークを置くだけ
		return &model.SyncResult{}, model.SyncActionMerge, nil
	}
}

// uploadAll はローカル全量をリモートへ押し上げます（remote==0 のブートストラップ）
func (s *syncService) uploadAll(ctx context.Context, owner uuid.UUID, key []byte) (*model.SyncResult, error) {
	cards, err := s.local.GetAllCards(ctx)
	if err != nil {
		return nil, err
	}
	reviews, err := s.local.GetAllReviews(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.uploadCards(ctx, owner, key, cards); err != nil {
		return nil, err
	}
	if err := s.uploadReviews(ctx, owner, reviews); err != nil {
		return nil, err
	}

	return &model.SyncResult{
		CardsUploaded:   len(cards),
		ReviewsUploaded: len(reviews),
	}, nil
}

// downloadAll はリモート全量（論理削除済みを除く）をローカルへ取り込みます
func (s *syncService) downloadAll(ctx context.Context, owner uuid.UUID, key []byte) (*model.SyncResult, error) {
	cards, err := s.cardRepo.FindActiveByOwner(ctx, s.db, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	reviews, err := s.reviewRepo.FindByOwner(ctx, s.db, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}

	for _, card := range cards {
		s.cipher.DecryptCard(card, key)
	}
	if err := s.local.BulkPutCards(ctx, cards); err != nil {
		return nil, err
	}
	if err := s.local.BulkPutReviews(ctx, reviews); err != nil {
		return nil, err
	}

	return &model.SyncResult{
		CardsDownloaded:   len(cards),
		ReviewsDownloaded: len(reviews),
	}, nil
}

// mergeBootstrap は両側にデータがある初回接触です。ダウンロード→アップロードの
// 順で行い、リモートは上位集合に、ローカルは和集合になります。
// 両側に存在するIDは増分同期と同じ規則（mergeCards）で解決します。
func (s *syncService) mergeBootstrap(ctx context.Context, owner uuid.UUID, key []byte) (*model.SyncResult, error) {
	remoteCards, err := s.cardRepo.FindActiveByOwner(ctx, s.db, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	remoteReviews, err := s.reviewRepo.FindByOwner(ctx, s.db, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	for _, card := range remoteCards {
		s.cipher.DecryptCard(card, key)
	}

	localCards, err := s.local.GetAllCards(ctx)
	if err != nil {
		return nil, err
	}
	localReviews, err := s.local.GetAllReviews(ctx)
	if err != nil {
		return nil, err
	}

	merged, conflicts := mergeCards(localCards, remoteCards, s.conflictWindow)

	localByID := make(map[uuid.UUID]*model.Card, len(localCards))
	for _, lc := range localCards {
		localByID[lc.CardID] = lc
	}

	// ローカル起源でない勝者をローカルへ取り込み、ローカル側の勝者をリモートへ
	var toImport, toUpload []*model.Card
	for _, card := range merged {
		if localByID[card.CardID] == card {
			toUpload = append(toUpload, card)
		} else {
			toImport = append(toImport, card)
		}
	}

	if err := s.local.BulkPutCards(ctx, toImport); err != nil {
		return nil, err
	}

	localIDs, err := s.local.ReviewIDs(ctx)
	if err != nil {
		return nil, err
	}
	var newReviews []*model.ReviewLog
	for _, review := range remoteReviews {
		if !localIDs[review.ReviewID] {
			newReviews = append(newReviews, review)
		}
	}
	if err := s.local.BulkPutReviews(ctx, newReviews); err != nil {
		return nil, err
	}

	if err := s.uploadCards(ctx, owner, key, toUpload); err != nil {
		return nil, err
	}
	if err := s.uploadReviews(ctx, owner, localReviews); err != nil {
		return nil, err
	}

	return &model.SyncResult{
		CardsUploaded:     len(toUpload),
		CardsDownloaded:   len(toImport),
		ReviewsUploaded:   len(localReviews),
		ReviewsDownloaded: len(newReviews),
		Conflicts:         conflicts,
	}, nil
}

// incrementalSync はウォーターマーク以降のデルタ同期です。
// クロックは二系統あり、ローカル側は端末発行の updatedAt / reviewedAt、
// リモート側はサーバ発行の server_updated_at / server_created_at で選択します。
func (s *syncService) incrementalSync(ctx context.Context, owner uuid.UUID, key []byte, since time.Time) (*model.SyncResult, model.SyncAction, error) {
	// 1. ローカル側の変更分
	localCards, err := s.local.CardsUpdatedSince(ctx, since)
	if err != nil {
		return nil, "", err
	}
	localReviews, err := s.local.ReviewsSince(ctx, since)
	if err != nil {
		return nil, "", err
	}

	// 2. リモート側の変更分（所有者スコープ、論理削除済みは除外）
	remoteCards, err := s.cardRepo.FindUpdatedSince(ctx, s.db, owner, since)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	remoteReviews, err := s.reviewRepo.FindCreatedSince(ctx, s.db, owner, since)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}

	// 3. リモート分を復号してから 4. マージ
	for _, card := range remoteCards {
		s.cipher.DecryptCard(card, key)
	}
	merged, conflicts := mergeCards(localCards, remoteCards, s.conflictWindow)

	localByID := make(map[uuid.UUID]*model.Card, len(localCards))
	for _, lc := range localCards {
		localByID[lc.CardID] = lc
	}

	// マージ勝者のうちローカル起源のものをアップロード、そうでないものを取り込み
	var toUpload, toImport []*model.Card
	for _, card := range merged {
		if localByID[card.CardID] == card {
			toUpload = append(toUpload, card)
		} else {
			toImport = append(toImport, card)
		}
	}

	// 5. 暗号化してアップロード（カード）、レビューは追記のみ
	if err := s.uploadCards(ctx, owner, key, toUpload); err != nil {
		return nil, "", err
	}
	if err := s.uploadReviews(ctx, owner, localReviews); err != nil {
		return nil, "", err
	}

	// 6. ローカルへの取り込み。レビューはIDのみで重複排除（内容比較はしない）
	if err := s.local.BulkPutCards(ctx, toImport); err != nil {
		return nil, "", err
	}
	localIDs, err := s.local.ReviewIDs(ctx)
	if err != nil {
		return nil, "", err
	}
	var newReviews []*model.ReviewLog
	for _, review := range remoteReviews {
		if !localIDs[review.ReviewID] {
			newReviews = append(newReviews, review)
		}
	}
	if err := s.local.BulkPutReviews(ctx, newReviews); err != nil {
		return nil, "", err
	}

	return &model.SyncResult{
		CardsUploaded:     len(toUpload),
		CardsDownloaded:   len(toImport),
		ReviewsUploaded:   len(localReviews),
		ReviewsDownloaded: len(newReviews),
		Conflicts:         conflicts,
	}, model.SyncActionMerge, nil
}

// uploadCards は平文カードの複製を暗号化してリモートへアップサートします。
// ローカルストアに返した構造体を書き換えないため、必ず複製してから暗号化します。
func (s *syncService) uploadCards(ctx context.Context, owner uuid.UUID, key []byte, cards []*model.Card) error {
	if len(cards) == 0 {
		return nil
	}
	encrypted := make([]*model.Card, 0, len(cards))
	for _, card := range cards {
		clone := card.Clone()
		clone.Owner = owner
		if err := s.cipher.EncryptCard(clone, key); err != nil {
			return err
		}
		encrypted = append(encrypted, clone)
	}
	if err := s.cardRepo.Upsert(ctx, s.db, encrypted); err != nil {
		return fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	return nil
}

func (s *syncService) uploadReviews(ctx context.Context, owner uuid.UUID, reviews []*model.ReviewLog) error {
	if len(reviews) == 0 {
		return nil
	}
	stamped := make([]*model.ReviewLog, 0, len(reviews))
	for _, review := range reviews {
		cp := *review
		cp.Owner = owner
		stamped = append(stamped, &cp)
	}
	if err := s.reviewRepo.Upsert(ctx, s.db, stamped); err != nil {
		return fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	return nil
}
