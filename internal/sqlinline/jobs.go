package sqlinline

const QEnqueueRenderJob = `--sql 7c1f2b9e-3d44-4a1b-9d27-5e8b6f0a21c3
insert into render_jobs(id, tenant_id, quote_id, status, prompt, created_at)
values (gen_random_uuid(), $1::uuid, $2::uuid, 'queued', $3::text, now())
returning id;
`

// QClaimRenderJobs is the exclusive-claim primitive: the skip-locked select
// and the transition to running happen in one statement, so two concurrent
// claimers can never receive the same job.
const QClaimRenderJobs = `--sql 4e9d0c7a-81b5-4f36-a2e9-6d13c8b7f402
with next_jobs as (
    select id
    from render_jobs
    where status = 'queued'
    order by created_at asc
    for update skip locked
    limit $1::int
),
claimed as (
    update render_jobs
    set status = 'running', started_at = now()
    where id in (select id from next_jobs)
    returning id, tenant_id, quote_id, status, prompt, image_url, error_code,
              created_at, started_at, completed_at
)
select * from claimed;
`

const QCompleteRenderJob = `--sql 9ab30d15-6c2f-4e78-b1a4-0f5d9e84c6b1
update render_jobs
set status = $2::text,
    prompt = coalesce(nullif($3::text, ''), prompt),
    image_url = $4::text,
    error_code = $5::text,
    completed_at = now()
where id = $1::uuid and status = 'running';
`

const QFindActiveJobForQuote = `--sql d2c84f6b-0a19-4b5d-8e37-1c6a2d90e5f4
select id, status
from render_jobs
where tenant_id = $1::uuid
  and quote_id = $2::uuid
  and status in ('queued', 'running')
order by created_at desc
limit 1;
`

const QCountRenderedSince = `--sql 5f7a1e92-b4d8-4c03-9a6e-2d81f0c37b5a
select count(*)
from render_jobs
where tenant_id = $1::uuid
  and status = 'rendered'
  and completed_at >= $2::timestamptz;
`
